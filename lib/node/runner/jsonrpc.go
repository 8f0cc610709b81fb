package runner

import (
	"net/http"

	"github.com/gorilla/rpc"
	jsonrpc "github.com/gorilla/rpc/json"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/consensus"
	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/storage"
	"github.com/laonet/laocoord/lib/witness"
)

const MaxLimitListOptions uint64 = 10000

type EchoArgs string
type EchoResult string

type LaoArgs struct {
	LaoID string
}

type LaoListResult []lao.Organization

type ChannelArgs struct {
	Channel string
}

type PublishArgs struct {
	Channel string
	Message message.Envelope
}

type PublishResult struct {
	MessageID string
}

type CatchupResult []message.Envelope

type jsonrpcLaoApp struct {
	nr *NodeRunner
}

func (j *jsonrpcLaoApp) Echo(r *http.Request, args *EchoArgs, result *EchoResult) error {
	*result = EchoResult(string(*args))
	return nil
}

func (j *jsonrpcLaoApp) List(r *http.Request, args *LaoArgs, result *LaoListResult) error {
	if len(args.LaoID) > 0 {
		o, err := j.nr.registry.Get(args.LaoID)
		if err != nil {
			return err
		}
		*result = LaoListResult{o}
		return nil
	}

	*result = LaoListResult(j.nr.registry.All())
	return nil
}

func parseChannel(s string) (channel.Channel, error) {
	ch := channel.Channel(s)
	if !ch.IsValid() {
		return ch, errors.InvalidChannel.Clone().SetData("channel", s)
	}

	return ch, nil
}

// Publish handles a message signed by a client and publishes it.
func (j *jsonrpcLaoApp) Publish(r *http.Request, args *PublishArgs, result *PublishResult) error {
	ch, err := parseChannel(args.Channel)
	if err != nil {
		return err
	}

	if err := j.nr.dispatcher.Forward(r.Context(), ch, args.Message); err != nil {
		return err
	}

	result.MessageID = args.Message.MessageID
	return nil
}

func (j *jsonrpcLaoApp) Catchup(r *http.Request, args *ChannelArgs, result *CatchupResult) error {
	ch, err := parseChannel(args.Channel)
	if err != nil {
		return err
	}

	messages, err := j.nr.dispatcher.History(r.Context(), ch)
	if err != nil {
		return err
	}

	*result = CatchupResult(append([]message.Envelope{}, messages...))
	return nil
}

type ProposeArgs struct {
	LaoID    string
	Key      consensus.Key
	Value    string
	Creation int64
}

type InstanceArgs struct {
	LaoID      string
	InstanceID string
}

type InstanceListResult []consensus.ElectInstance

type NodeArgs struct {
	LaoID     string
	PublicKey string
}

type jsonrpcConsensusApp struct {
	nr *NodeRunner
}

// Propose starts an instance proposed by the local node. A zero Creation is
// the current time.
func (j *jsonrpcConsensusApp) Propose(r *http.Request, args *ProposeArgs, result *consensus.ElectInstance) error {
	creation := args.Creation
	if creation < 1 {
		creation = j.nr.clock.Now().Unix()
	}

	inst, err := j.nr.consensus.Propose(r.Context(), args.LaoID, args.Key, args.Value, creation)
	if err != nil {
		return err
	}

	*result = inst
	return nil
}

func (j *jsonrpcConsensusApp) Instance(r *http.Request, args *InstanceArgs, result *consensus.ElectInstance) error {
	inst, err := j.nr.consensus.Instance(args.LaoID, args.InstanceID)
	if err != nil {
		return err
	}

	*result = inst
	return nil
}

func (j *jsonrpcConsensusApp) Instances(r *http.Request, args *LaoArgs, result *InstanceListResult) error {
	if _, err := j.nr.registry.Get(args.LaoID); err != nil {
		return err
	}

	*result = InstanceListResult(append([]consensus.ElectInstance{}, j.nr.consensus.Instances(args.LaoID)...))
	return nil
}

func (j *jsonrpcConsensusApp) Node(r *http.Request, args *NodeArgs, result *consensus.Node) error {
	n, err := j.nr.consensus.NodeState(args.LaoID, args.PublicKey)
	if err != nil {
		return err
	}

	*result = n
	return nil
}

type WitnessArgs struct {
	LaoID     string
	MessageID string
}

type WitnessMessageListResult []witness.Message

type jsonrpcWitnessApp struct {
	nr *NodeRunner
}

func (j *jsonrpcWitnessApp) Pending(r *http.Request, args *LaoArgs, result *WitnessMessageListResult) error {
	if _, err := j.nr.registry.Get(args.LaoID); err != nil {
		return err
	}

	*result = WitnessMessageListResult(append([]witness.Message{}, j.nr.witness.PendingActions(args.LaoID)...))
	return nil
}

func (j *jsonrpcWitnessApp) Messages(r *http.Request, args *LaoArgs, result *WitnessMessageListResult) error {
	if _, err := j.nr.registry.Get(args.LaoID); err != nil {
		return err
	}

	*result = WitnessMessageListResult(append([]witness.Message{}, j.nr.witness.Messages(args.LaoID)...))
	return nil
}

// Witness signs a registered message as the local witness.
func (j *jsonrpcWitnessApp) Witness(r *http.Request, args *WitnessArgs, result *witness.Message) error {
	o, err := j.nr.registry.Get(args.LaoID)
	if err != nil {
		return err
	}

	m, err := j.nr.witness.Witness(r.Context(), o.ID, o.Channel(), args.MessageID)
	if err != nil {
		return err
	}

	*result = m
	return nil
}

type DBHasArgs string
type DBHasResult bool

type DBGetArgs string
type DBGetResult storage.IterItem

type GetIteratorOptions struct {
	Reverse bool
	Limit   uint64
}

type DBGetIteratorArgs struct {
	Prefix  string
	Options GetIteratorOptions
}

type DBGetIteratorResult struct {
	Limit uint64
	Items []storage.IterItem
}

// jsonrpcDBApp reads the raw records of the storage, for debugging.
type jsonrpcDBApp struct {
	st *storage.LevelDBBackend
}

func (j *jsonrpcDBApp) Has(r *http.Request, args *DBHasArgs, result *DBHasResult) error {
	o, err := j.st.Has(string(*args))
	if err != nil {
		return err
	}

	*result = DBHasResult(o)
	return nil
}

func (j *jsonrpcDBApp) Get(r *http.Request, args *DBGetArgs, result *DBGetResult) error {
	o, err := j.st.GetRaw(string(*args))
	if err != nil {
		return err
	}

	*result = DBGetResult{Key: []byte(*args), Value: o}
	return nil
}

func (j *jsonrpcDBApp) GetIterator(r *http.Request, args *DBGetIteratorArgs, result *DBGetIteratorResult) error {
	limit := args.Options.Limit
	if limit < 1 || limit > MaxLimitListOptions {
		limit = MaxLimitListOptions
	}

	it, closeFunc := j.st.GetIterator(args.Prefix, args.Options.Reverse)
	defer closeFunc()

	collected := []storage.IterItem{}
	for uint64(len(collected)) < limit {
		v, hasNext := it()
		if !hasNext {
			break
		}

		collected = append(collected, v)
	}

	result.Items = collected
	result.Limit = limit

	return nil
}

type jsonrpcServer struct {
	nr *NodeRunner
}

func newJSONRPCServer(nr *NodeRunner) *jsonrpcServer {
	return &jsonrpcServer{nr: nr}
}

type jsonrpcInternalServer struct {
	*rpc.Server
}

func (s *jsonrpcInternalServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set(
		"Access-Control-Allow-Headers",
		"Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization",
	)

	if r.Method == "OPTIONS" {
		return
	}

	s.Server.ServeHTTP(w, r)
}

// Handler serves the services `Lao`, `Consensus`, `Witness` and `DB`.
func (j *jsonrpcServer) Handler() http.Handler {
	s := &jsonrpcInternalServer{Server: rpc.NewServer()}
	s.RegisterCodec(jsonrpc.NewCodec(), "application/json")
	s.RegisterCodec(jsonrpc.NewCodec(), "application/json;charset=UTF-8")

	s.RegisterService(&jsonrpcLaoApp{nr: j.nr}, "Lao")
	s.RegisterService(&jsonrpcConsensusApp{nr: j.nr}, "Consensus")
	s.RegisterService(&jsonrpcWitnessApp{nr: j.nr}, "Witness")
	s.RegisterService(&jsonrpcDBApp{st: j.nr.storage}, "DB")

	return s
}
