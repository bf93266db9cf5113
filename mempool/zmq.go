package mempool

import (
	"context"
	"log"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/metaid/utxo_indexer/blockchain"
)

// ZMQSubscriber feeds a Monitor from the node's ZMQ "rawtx" publisher.
// The teacher project wires an equivalent NewZMQClient(addresses,
// handler).AddTopic("rawtx", ...).Start() against its own ZMQClient type;
// that type isn't present in this retrieval, so this subscriber is
// written directly against go-zeromq/zmq4's public SUB-socket API,
// following the same addresses/reconnect/topic-handler shape.
type ZMQSubscriber struct {
	addresses         []string
	reconnectInterval time.Duration
	monitor           *Monitor

	cancel context.CancelFunc
	done   chan struct{}
}

// NewZMQSubscriber creates a subscriber that will dial addresses (each
// tried in turn until one connects) and feed monitor from the "rawtx"
// topic.
func NewZMQSubscriber(addresses []string, reconnectInterval time.Duration, monitor *Monitor) *ZMQSubscriber {
	return &ZMQSubscriber{
		addresses:         addresses,
		reconnectInterval: reconnectInterval,
		monitor:           monitor,
		done:              make(chan struct{}),
	}
}

// Start dials the node's ZMQ publisher and begins feeding Ingest in the
// background. It returns once the initial connection succeeds.
func (s *ZMQSubscriber) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	sock := zmq4.NewSub(ctx, zmq4.WithDialerRetry(s.reconnectInterval))

	var dialErr error
	for _, addr := range s.addresses {
		if err := sock.Dial(addr); err != nil {
			dialErr = err
			log.Printf("mempool: zmq dial %s failed: %v", addr, err)
			continue
		}
		dialErr = nil
		log.Printf("mempool: subscribed to %s", addr)
		break
	}
	if dialErr != nil {
		return dialErr
	}

	if err := sock.SetOption(zmq4.OptionSubscribe, "rawtx"); err != nil {
		sock.Close()
		return err
	}

	go s.run(ctx, sock)
	return nil
}

func (s *ZMQSubscriber) run(ctx context.Context, sock zmq4.Socket) {
	defer close(s.done)
	defer sock.Close()

	for {
		msg, err := sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("mempool: zmq recv error: %v", err)
			time.Sleep(s.reconnectInterval)
			continue
		}
		if len(msg.Frames) < 2 {
			continue
		}
		s.handleRawTx(msg.Frames[1])
	}
}

func (s *ZMQSubscriber) handleRawTx(raw []byte) {
	tx, err := blockchain.DeserializeRawTx(raw)
	if err != nil {
		log.Printf("mempool: discard malformed rawtx: %v", err)
		return
	}
	s.monitor.Ingest(tx)
}

// Stop tears down the subscription and waits for the receive loop to exit.
func (s *ZMQSubscriber) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
