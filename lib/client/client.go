package client

import (
	"context"
	"encoding/json"
	"net/http"
	neturl "net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/laonet/laocoord/lib/common"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/message/query"
)

const (
	UrlPrefixForAPIV1 = "/api/v1"

	UrlNodeInfo        = "/node"
	UrlQuery           = "/query"
	UrlLaos            = "/laos"
	UrlLao             = "/laos/{id}"
	UrlInstances       = "/laos/{id}/instances"
	UrlInstance        = "/laos/{id}/instances/{instance}"
	UrlNodes           = "/laos/{id}/nodes"
	UrlNode            = "/laos/{id}/nodes/{node}"
	UrlWitnessMessages = "/laos/{id}/witness-messages"
	UrlWitnessMessage  = "/laos/{id}/witness-messages/{message}"
	UrlActions         = "/laos/{id}/actions"
)

type QueryKey string

func (qk QueryKey) String() string {
	return string(qk)
}

const (
	QueryPhase QueryKey = "phase"
	QueryState QueryKey = "state"
)

type Q struct {
	Key   QueryKey
	Value string
}

type Queries []Q

func (qs Queries) toQueryString() string {
	if len(qs) == 0 {
		return ""
	}

	urlValues := neturl.Values{}
	for _, q := range qs {
		urlValues.Add(q.Key.String(), q.Value)
	}
	return "?" + urlValues.Encode()
}

func replaceURL(pattern string, vars ...string) string {
	var pairs []string
	for i := 0; i+1 < len(vars); i += 2 {
		pairs = append(pairs, "{"+vars[i]+"}", neturl.PathEscape(vars[i+1]))
	}

	return strings.NewReplacer(pairs...).Replace(pattern)
}

// Client reads the state of a node and sends it queries.
type Client struct {
	URL string

	HTTP    *common.HTTP2Client
	queryID int32
}

func NewClient(url string) *Client {
	c, err := NewPersistentClient(url, 0, nil)
	if err != nil {
		panic(err)
	}

	return c
}

// NewPersistentClient retries the failed requests by retry; a nil retry
// sends them once.
func NewPersistentClient(url string, timeout time.Duration, retry *common.RetrySetting) (*Client, error) {
	httpClient, err := common.NewHTTP2Client(timeout, 0, true, retry)
	if err != nil {
		return nil, err
	}

	return &Client{
		URL:  strings.TrimSuffix(url, "/"),
		HTTP: httpClient,
	}, nil
}

func (c *Client) Close() {
	c.HTTP.Close()
}

func (c *Client) toResponse(resp *http.Response, response interface{}) error {
	defer resp.Body.Close()
	decoder := json.NewDecoder(resp.Body)

	if !(resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices) {
		var p Problem
		if err := decoder.Decode(&p); err != nil {
			return err
		}
		if p.Status < 1 {
			p.Status = resp.StatusCode
		}
		return Error{Problem: p}
	}

	return decoder.Decode(response)
}

func (c *Client) Get(ctx context.Context, path string, headers http.Header) (*http.Response, error) {
	return c.HTTP.Get(ctx, c.URL+UrlPrefixForAPIV1+path, headers)
}

func (c *Client) Post(ctx context.Context, path string, body []byte, headers http.Header) (*http.Response, error) {
	return c.HTTP.Post(ctx, c.URL+UrlPrefixForAPIV1+path, body, headers)
}

func (c *Client) load(ctx context.Context, path string, response interface{}) error {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	resp, err := c.Get(ctx, path, headers)
	if err != nil {
		return err
	}

	return c.toResponse(resp, response)
}

func (c *Client) LoadNodeInfo(ctx context.Context) (info NodeInfo, err error) {
	err = c.load(ctx, UrlNodeInfo, &info)
	return
}

func (c *Client) LoadLaos(ctx context.Context) (page LaosPage, err error) {
	err = c.load(ctx, UrlLaos, &page)
	return
}

func (c *Client) LoadLao(ctx context.Context, id string) (lao Lao, err error) {
	err = c.load(ctx, replaceURL(UrlLao, "id", id), &lao)
	return
}

func (c *Client) LoadInstances(ctx context.Context, laoID string, queries ...Q) (page InstancesPage, err error) {
	err = c.load(ctx, replaceURL(UrlInstances, "id", laoID)+Queries(queries).toQueryString(), &page)
	return
}

func (c *Client) LoadInstance(ctx context.Context, laoID, instanceID string) (instance Instance, err error) {
	err = c.load(ctx, replaceURL(UrlInstance, "id", laoID, "instance", instanceID), &instance)
	return
}

func (c *Client) LoadNodes(ctx context.Context, laoID string) (page NodesPage, err error) {
	err = c.load(ctx, replaceURL(UrlNodes, "id", laoID), &page)
	return
}

func (c *Client) LoadNode(ctx context.Context, laoID, publicKey string) (node Node, err error) {
	err = c.load(ctx, replaceURL(UrlNode, "id", laoID, "node", publicKey), &node)
	return
}

func (c *Client) LoadWitnessMessages(ctx context.Context, laoID string, queries ...Q) (page WitnessMessagesPage, err error) {
	err = c.load(ctx, replaceURL(UrlWitnessMessages, "id", laoID)+Queries(queries).toQueryString(), &page)
	return
}

func (c *Client) LoadWitnessMessage(ctx context.Context, laoID, messageID string) (m WitnessMessage, err error) {
	err = c.load(ctx, replaceURL(UrlWitnessMessage, "id", laoID, "message", messageID), &m)
	return
}

func (c *Client) LoadActions(ctx context.Context, laoID string) (page ActionsPage, err error) {
	err = c.load(ctx, replaceURL(UrlActions, "id", laoID), &page)
	return
}

type answer struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      int                `json:"id"`
	Result  json.RawMessage    `json:"result,omitempty"`
	Error   *query.AnswerError `json:"error,omitempty"`
}

func (c *Client) nextQueryID() int {
	return int(atomic.AddInt32(&c.queryID, 1))
}

// query posts q and decodes the result of its answer into result; a nil
// result ignores it.
func (c *Client) query(ctx context.Context, q interface{}, result interface{}) error {
	body, err := json.Marshal(q)
	if err != nil {
		return err
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	resp, err := c.Post(ctx, UrlQuery, body, headers)
	if err != nil {
		return err
	}

	var a answer
	if err := c.toResponse(resp, &a); err != nil {
		return err
	}
	if a.Error != nil {
		return QueryError{AnswerError: *a.Error}
	}
	if result == nil || len(a.Result) < 1 {
		return nil
	}

	return json.Unmarshal(a.Result, result)
}

// Publish sends env to the channel through the node.
func (c *Client) Publish(ctx context.Context, channel string, env message.Envelope) error {
	return c.query(ctx, query.NewPublish(c.nextQueryID(), channel, env), nil)
}

// Catchup returns the messages of the channel known by the node.
func (c *Client) Catchup(ctx context.Context, channel string) ([]message.Envelope, error) {
	var messages []message.Envelope
	if err := c.query(ctx, query.NewCatchup(c.nextQueryID(), channel), &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

func (c *Client) Subscribe(ctx context.Context, channel string) error {
	return c.query(ctx, query.NewSubscribe(c.nextQueryID(), channel), nil)
}

func (c *Client) Unsubscribe(ctx context.Context, channel string) error {
	return c.query(ctx, query.NewUnsubscribe(c.nextQueryID(), channel), nil)
}
