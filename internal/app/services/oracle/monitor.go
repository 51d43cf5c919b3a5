package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/sendgft/contracts/internal/app/domain/asset"
	"github.com/sendgft/contracts/internal/app/system"
	"github.com/sendgft/contracts/pkg/logger"
)

var _ system.Service = (*InventoryMonitor)(nil)

// InventoryMonitor periodically checks the oracle account's balance in each
// watched token and warns when it drops below the configured threshold.
// Trades fail outright when inventory runs dry, so the warning is the
// operator's cue to refill.
type InventoryMonitor struct {
	service   *Service
	log       *logger.Logger
	interval  time.Duration
	threshold *uint256.Int

	mu      sync.Mutex
	watched []asset.Address
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	lowAt   map[asset.Address]time.Time
}

// NewInventoryMonitor constructs a lifecycle-managed inventory monitor.
func NewInventoryMonitor(service *Service, threshold *uint256.Int, log *logger.Logger) *InventoryMonitor {
	if log == nil {
		log = logger.NewDefault("oracle-inventory")
	}
	return &InventoryMonitor{
		service:   service,
		log:       log,
		interval:  30 * time.Second,
		threshold: asset.Clone(threshold),
		lowAt:     make(map[asset.Address]time.Time),
	}
}

// Watch adds tokens to the monitored set.
func (m *InventoryMonitor) Watch(tokens ...asset.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watched = append(m.watched, tokens...)
}

func (m *InventoryMonitor) Name() string { return "oracle-inventory" }

func (m *InventoryMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if len(m.watched) == 0 {
		m.mu.Unlock()
		m.log.Warn("no tokens watched; inventory monitor disabled")
		return nil
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.tick(runCtx)
			}
		}
	}()

	m.log.Info("inventory monitor started")
	return nil
}

func (m *InventoryMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.log.Info("inventory monitor stopped")
	return nil
}

func (m *InventoryMonitor) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m.mu.Lock()
	tokens := append([]asset.Address(nil), m.watched...)
	m.mu.Unlock()

	for _, token := range tokens {
		balance, err := m.service.Inventory(ctx, token)
		if err != nil {
			m.log.WithError(err).WithField("token", token).Warn("inventory check failed")
			continue
		}
		if balance.Lt(m.threshold) {
			if m.firstLow(token) {
				m.log.WithField("token", token).
					WithField("balance", balance.Dec()).
					WithField("threshold", m.threshold.Dec()).
					Warn("oracle inventory low")
			}
			continue
		}
		m.clearLow(token)
	}
}

// firstLow reports whether this is the first low reading since the token was
// last healthy, so the warning fires once per depletion.
func (m *InventoryMonitor) firstLow(token asset.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lowAt[token]; ok {
		return false
	}
	m.lowAt[token] = time.Now()
	return true
}

func (m *InventoryMonitor) clearLow(token asset.Address) {
	m.mu.Lock()
	delete(m.lowAt, token)
	m.mu.Unlock()
}
