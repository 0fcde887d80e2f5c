package opcuasrc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
	"github.com/and-elf/layered-queue-driver-sub000/internal/ports"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	Nodes            []NodeConfig  `yaml:"nodes"`
}

// NodeConfig binds one monitored node to a signal table slot. Scale
// converts the engineering value to integer counts before ingestion.
type NodeConfig struct {
	NodeID string  `yaml:"node_id"`
	Signal uint8   `yaml:"signal"`
	Scale  float64 `yaml:"scale"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "lqd"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 250 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	for i := range c.Nodes {
		if c.Nodes[i].Scale == 0 {
			c.Nodes[i].Scale = 1
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	return nil
}

// Collector subscribes to OPC UA data changes and pushes them into the
// sample transport as raw events.
type Collector struct {
	cfg  Config
	sink ports.EventSink
	obs  ports.Observability

	client    *opcua.Client
	sub       *opcua.Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	handleMap map[uint32]NodeConfig
	mu        sync.Mutex
	started   bool
}

func NewCollector(cfg Config, sink ports.EventSink, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{cfg: cfg, sink: sink, obs: obs}, nil
}

func (c *Collector) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("opcua collector already started")
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	client, err := opcua.NewClient(c.cfg.Endpoint, c.clientOptions()...)
	if err != nil {
		cancel()
		return fmt.Errorf("opcua new client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		cancel()
		return fmt.Errorf("opcua connect: %w", err)
	}

	notifyCh := make(chan *opcua.PublishNotificationData, len(c.cfg.Nodes)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: c.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		cancel()
		_ = client.Close(ctx)
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	handleMap := make(map[uint32]NodeConfig, len(c.cfg.Nodes))
	for i, node := range c.cfg.Nodes {
		nodeID, err := ua.ParseNodeID(node.NodeID)
		if err != nil {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("parse node id %q: %w", node.NodeID, err)
		}
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		if c.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(c.cfg.SamplingInterval / time.Millisecond)
		}
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q: %w", node.NodeID, err)
		}
		if len(res.Results) == 0 || res.Results[0].StatusCode != ua.StatusOK {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q failed", node.NodeID)
		}
		handleMap[handle] = node
	}

	c.mu.Lock()
	c.client = client
	c.sub = sub
	c.cancel = cancel
	c.handleMap = handleMap
	c.started = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.consume(ctx, notifyCh)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	sub := c.sub
	client := c.client
	c.started = false
	c.cancel = nil
	c.sub = nil
	c.client = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if sub != nil {
		if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if client != nil {
		if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}

	c.wg.Wait()
	return err
}

func (c *Collector) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				c.obs.LogError("opcua notification", notif.Error)
				continue
			}
			c.processNotification(notif.Value)
		}
	}
}

func (c *Collector) processNotification(val interface{}) {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return
	}

	for _, item := range data.MonitoredItems {
		nodeCfg, ok := c.handleMap[item.ClientHandle]
		if !ok {
			continue
		}
		fv, ok := variantToFloat(item.Value.Value)
		if !ok {
			c.obs.LogError("opcua unsupported variant", nil,
				ports.Field{Key: "node", Value: nodeCfg.NodeID})
			continue
		}

		ts := item.Value.ServerTimestamp
		if ts.IsZero() {
			ts = item.Value.SourceTimestamp
		}
		if ts.IsZero() {
			ts = time.Now()
		}

		status := domain.StatusOk
		if item.Value.Status != ua.StatusOK {
			status = domain.StatusDegraded
		}

		evt := domain.RawEvent{
			Source:    nodeCfg.Signal,
			Value:     int32(fv * nodeCfg.Scale),
			Status:    status,
			Timestamp: uint64(ts.UnixMicro()),
		}
		if !c.sink.Push(evt) {
			c.obs.IncCounter("lq_source_evictions_total", 1)
		}
	}
}

func (c *Collector) clientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(c.cfg.SecurityPolicy),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if c.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	return opts
}

func (c *Collector) cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

var _ ports.Collector = (*Collector)(nil)
