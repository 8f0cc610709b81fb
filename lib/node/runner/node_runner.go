//
// Struct that bridges together components of a node
//
// NodeRunner bridges together the transport, the storage and the engines of
// the organizations the local node belongs to. In this regard, it can be
// seen as a single node, and is used as such in unit tests.
//
package runner

import (
	"context"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	ghandlers "github.com/gorilla/handlers"
	logging "github.com/inconshreveable/log15"
	"golang.org/x/sync/errgroup"

	"github.com/laonet/laocoord/lib/channel"
	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/common/keypair"
	"github.com/laonet/laocoord/lib/common/observer"
	"github.com/laonet/laocoord/lib/consensus"
	"github.com/laonet/laocoord/lib/dispatcher"
	"github.com/laonet/laocoord/lib/lao"
	"github.com/laonet/laocoord/lib/message/messagedata"
	"github.com/laonet/laocoord/lib/metrics"
	"github.com/laonet/laocoord/lib/network"
	"github.com/laonet/laocoord/lib/node/runner/api"
	"github.com/laonet/laocoord/lib/node/runner/api/resource"
	"github.com/laonet/laocoord/lib/storage"
	"github.com/laonet/laocoord/lib/store"
	"github.com/laonet/laocoord/lib/version"
	"github.com/laonet/laocoord/lib/witness"
)

type NodeRunner struct {
	signer     keypair.Signer
	registry   *lao.Registry
	transport  channel.Transport
	storage    *storage.LevelDBBackend
	messages   store.MessageStore
	records    *store.RecordStore
	dispatcher *dispatcher.Dispatcher
	consensus  *consensus.Engine
	witness    *witness.Engine
	actions    *lao.ActionLog
	server     *network.HTTPServer
	clock      common.Clock

	log logging.Logger

	subscriptionsLock sync.Mutex
	subscriptions     []*observer.Subscription

	stop     chan struct{}
	stopOnce sync.Once

	Conf common.Config
}

// NewNodeRunner wires the engines of the local node. server may be nil, then
// nothing is served over http.
func NewNodeRunner(
	signer keypair.Signer,
	registry *lao.Registry,
	transport channel.Transport,
	st *storage.LevelDBBackend,
	messages store.MessageStore,
	server *network.HTTPServer,
	conf common.Config,
) (nr *NodeRunner, err error) {
	policy, err := witness.ParsePolicy(conf.WitnessThreshold)
	if err != nil {
		return nil, err
	}

	nr = &NodeRunner{
		signer:    signer,
		registry:  registry,
		transport: transport,
		storage:   st,
		messages:  messages,
		records:   store.NewRecordStore(st),
		actions:   lao.NewActionLog(),
		server:    server,
		clock:     common.SystemClock{},
		log:       log.New(logging.Ctx{"node": signer.PublicKey()}),
		stop:      make(chan struct{}),
		Conf:      conf,
	}

	nr.dispatcher = dispatcher.NewDispatcher(signer, transport, messages, conf)

	nr.consensus = consensus.NewEngine(registry, nr.dispatcher, nil)
	nr.consensus.SetRecordStore(nr.records)
	nr.consensus.SetOnDecided(nr.onDecided)

	nr.witness = witness.NewEngine(registry, nr.dispatcher, policy)
	nr.witness.SetRecordStore(nr.records)
	nr.witness.SetEnvelopeStore(messages)

	nr.actions.SetRecordStore(nr.records)

	nr.registerHandlers()

	return nr, nil
}

func (nr *NodeRunner) registerHandlers() {
	d := nr.dispatcher

	d.Register(messagedata.ConsensusObject, messagedata.ElectAction, nr.handleElect)
	d.Register(messagedata.ConsensusObject, messagedata.ElectAcceptAction, nr.handleElectAccept)
	d.Register(messagedata.ConsensusObject, messagedata.VoteAction, nr.handleVote)
	d.Register(messagedata.MessageObject, messagedata.WitnessAction, nr.handleWitness)

	d.Register(messagedata.MeetingObject, messagedata.CreateAction, nr.handleWitnessed)
	d.Register(messagedata.RollCallObject, messagedata.CreateAction, nr.handleWitnessed)
	d.Register(messagedata.LaoObject, messagedata.UpdatePropertiesAction, nr.handleWitnessed)
}

// SetClock sets the clock of the engines and of the applied actions.
func (nr *NodeRunner) SetClock(clock common.Clock) {
	nr.clock = clock
	nr.consensus.SetClock(clock)
}

func (nr *NodeRunner) onDecided(laoID string, inst consensus.ElectInstance) {
	nr.log.Info(
		"instance accepted",
		"lao", laoID,
		"instance", inst.InstanceID,
		"key", inst.Key,
		"value", inst.Value,
	)
}

func (nr *NodeRunner) nodeInfo() resource.NodeInfo {
	info := resource.NodeInfo{
		PublicKey: nr.signer.PublicKey(),
		Version:   version.Version,
	}
	if nr.server != nil && nr.server.Config().Endpoint != nil {
		info.Endpoint = nr.server.Config().Endpoint.String()
	}

	return info
}

// Ready registers the handlers of the http server and lets it answer.
func (nr *NodeRunner) Ready() error {
	if nr.server == nil {
		return nil
	}

	if rate := nr.server.Config().RateLimit; len(rate) > 0 {
		rateLimitMiddleware, err := network.RateLimitMiddleware(rate)
		if err != nil {
			nr.log.Error("`network.RateLimitMiddleware` has an error", "err", err)
			return err
		}
		for _, name := range []string{network.RouterNameAPI, network.RouterNameJSONRPC} {
			if err := nr.server.AddMiddleware(name, rateLimitMiddleware); err != nil {
				nr.log.Error("`network.RateLimitMiddleware` has an error", "router", name, "err", err)
				return err
			}
		}
	}

	// BaseRouter's middlewares impact all sub routers.
	if err := nr.server.AddMiddleware("", network.RecoverMiddleware(false), network.MetricsMiddleware); err != nil {
		nr.log.Error("Middleware has an error", "err", err)
		return err
	}

	{ //CORS
		allowedOrigins := ghandlers.AllowedOrigins([]string{"*"})
		allowedMethods := ghandlers.AllowedMethods([]string{"GET", "POST"})
		allowedHeaders := ghandlers.AllowedHeaders([]string{"Content-Type", "X-Requested-With", "Cache-Control", "Access-Control"})

		cors := ghandlers.CORS(allowedOrigins, allowedMethods, allowedHeaders)
		if err := nr.server.AddMiddleware(network.RouterNameAPI, cors); err != nil {
			nr.log.Error("Middleware has an error", "err", err)
			return err
		}
	}

	apiHandler := api.NewNetworkHandlerAPI(
		nr.registry,
		nr.consensus,
		nr.witness,
		nr.actions,
		nr.dispatcher,
		nr.nodeInfo(),
	)
	for pattern, methods := range apiHandler.Routes() {
		for method, handler := range methods {
			nr.server.AddHandler(pattern, handler).Methods(method, "OPTIONS")
		}
	}

	nr.server.AddHandler(network.URLPathPrefixJSONRPC, newJSONRPCServer(nr).Handler()).Methods("POST", "OPTIONS")
	nr.server.AddHandler(network.URLPathPrefixMetrics, metrics.Handler())

	// pprof
	if DebugPProf {
		nr.server.AddHandler(network.URLPathPrefixDebug+"/pprof/cmdline", http.HandlerFunc(pprof.Cmdline))
		nr.server.AddHandler(network.URLPathPrefixDebug+"/pprof/profile", http.HandlerFunc(pprof.Profile))
		nr.server.AddHandler(network.URLPathPrefixDebug+"/pprof/symbol", http.HandlerFunc(pprof.Symbol))
		nr.server.AddHandler(network.URLPathPrefixDebug+"/pprof/trace", http.HandlerFunc(pprof.Trace))
		nr.server.AddHandler(network.URLPathPrefixDebug+"/pprof/*", http.HandlerFunc(pprof.Index))
	}

	return nr.server.Ready()
}

// Restore loads the stored state of the organization laoID and applies the
// witnessed actions which reached quorum before the node stopped.
func (nr *NodeRunner) Restore(laoID string) error {
	if err := nr.consensus.Restore(laoID); err != nil {
		return err
	}
	if err := nr.witness.Restore(laoID); err != nil {
		return err
	}

	restored, err := nr.actions.Restore(laoID)
	if err != nil {
		return err
	}
	if err := nr.restoreProperties(laoID, restored); err != nil {
		return err
	}

	for _, m := range nr.witness.Messages(laoID) {
		if m.State != witness.StateQuorumReached || m.Canceled {
			continue
		}
		nr.applyWitnessed(laoID, m)
	}

	nr.log.Debug(
		"restored",
		"lao", laoID,
		"instances", len(nr.consensus.Instances(laoID)),
		"witness-messages", len(nr.witness.Messages(laoID)),
		"actions", len(restored),
	)

	return nil
}

// Start restores the organizations, catches up their channels and handles
// the deliveries until Stop is called.
func (nr *NodeRunner) Start() error {
	nr.log.Debug("NodeRunner started")

	for _, o := range nr.registry.All() {
		if err := nr.Restore(o.ID); err != nil {
			nr.log.Error("failed to restore", "lao", o.ID, "error", err)
			return err
		}
		nr.watch(o.ID)
	}

	if err := nr.Ready(); err != nil {
		return err
	}

	started := make(chan error, 1)
	go func() {
		started <- nr.dispatcher.Start()
	}()

	if err := nr.Join(context.Background()); err != nil {
		nr.log.Error("failed to join the organizations", "error", err)
	}

	go nr.failExpired()

	return <-started
}

// Join subscribes the channels of every organization and replays their
// history in parallel.
func (nr *NodeRunner) Join(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, o := range nr.registry.All() {
		for _, ch := range []channel.Channel{o.Channel(), o.ConsensusChannel()} {
			ch := ch
			g.Go(func() error {
				return nr.dispatcher.Join(ctx, ch)
			})
		}
	}

	return g.Wait()
}

// watch applies the actions whose witness message reaches quorum without a
// callback, like the ones restored from the storage.
func (nr *NodeRunner) watch(laoID string) {
	s := nr.witness.Subscribe(laoID, func(e witness.Event) {
		if e.Type != witness.EventQuorumReached || e.Message.Canceled {
			return
		}
		nr.applyWitnessed(e.LaoID, e.Message)
	})

	nr.subscriptionsLock.Lock()
	nr.subscriptions = append(nr.subscriptions, s)
	nr.subscriptionsLock.Unlock()
}

func (nr *NodeRunner) failExpired() {
	ticker := time.NewTicker(FailExpiredInterval)
	defer ticker.Stop()

	for {
		select {
		case <-nr.stop:
			return
		case <-ticker.C:
			if failed := nr.consensus.FailExpired(nr.Conf.AcceptTimeout); len(failed) > 0 {
				nr.log.Debug("expired instances failed", "instances", failed)
			}
		}
	}
}

func (nr *NodeRunner) Stop() {
	nr.stopOnce.Do(func() {
		close(nr.stop)

		nr.subscriptionsLock.Lock()
		for _, s := range nr.subscriptions {
			s.Cancel()
		}
		nr.subscriptions = nil
		nr.subscriptionsLock.Unlock()

		nr.dispatcher.Stop()

		if nr.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := nr.server.Stop(ctx); err != nil {
				nr.log.Error("failed to stop http server", "error", err)
			}
		}
	})
}

func (nr *NodeRunner) PublicKey() string {
	return nr.signer.PublicKey()
}

func (nr *NodeRunner) Registry() *lao.Registry {
	return nr.registry
}

func (nr *NodeRunner) Dispatcher() *dispatcher.Dispatcher {
	return nr.dispatcher
}

func (nr *NodeRunner) Consensus() *consensus.Engine {
	return nr.consensus
}

func (nr *NodeRunner) Witness() *witness.Engine {
	return nr.witness
}

func (nr *NodeRunner) Actions() *lao.ActionLog {
	return nr.actions
}

func (nr *NodeRunner) Storage() *storage.LevelDBBackend {
	return nr.storage
}

func (nr *NodeRunner) Server() *network.HTTPServer {
	return nr.server
}
