package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/withobsrvr/payroll-sync-processor/payroll"
)

// EmployeeReader is the read surface the registry projection needs from the
// payroll contract. *payroll.Caller satisfies it.
type EmployeeReader interface {
	AllEmployees(ctx context.Context) ([]common.Address, error)
	Employee(ctx context.Context, who common.Address) (payroll.Employee, error)
}

// RegistryProjection is a read-through cache of employee records keyed by
// address. It is a disposable projection, not a source of truth: a refresh
// re-reads the contract, and an employee vanishing between listing and
// detail fetch is reported as Exists=false rather than an error.
type RegistryProjection struct {
	reader EmployeeReader
	logger *zap.Logger

	mu       sync.RWMutex
	addrs    []common.Address
	haveList bool
	cache    map[common.Address]payroll.Employee
}

// NewRegistryProjection creates an empty projection over the given reader.
func NewRegistryProjection(reader EmployeeReader, logger *zap.Logger) *RegistryProjection {
	return &RegistryProjection{
		reader: reader,
		logger: logger,
		cache:  make(map[common.Address]payroll.Employee),
	}
}

// AllAddresses returns the registry address list in contract order, fetching
// it on first use and serving the cached list until the next refresh.
func (r *RegistryProjection) AllAddresses(ctx context.Context) ([]common.Address, error) {
	r.mu.RLock()
	if r.haveList {
		out := make([]common.Address, len(r.addrs))
		copy(out, r.addrs)
		r.mu.RUnlock()
		return out, nil
	}
	r.mu.RUnlock()

	addrs, err := r.reader.AllEmployees(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.addrs = addrs
	r.haveList = true
	r.mu.Unlock()

	out := make([]common.Address, len(addrs))
	copy(out, addrs)
	return out, nil
}

// Size returns the current registry size.
func (r *RegistryProjection) Size(ctx context.Context) (uint64, error) {
	addrs, err := r.AllAddresses(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(len(addrs)), nil
}

// Get returns the employee record for an address, reading through to the
// contract on first access per refresh cycle.
func (r *RegistryProjection) Get(ctx context.Context, who common.Address) (payroll.Employee, error) {
	r.mu.RLock()
	emp, ok := r.cache[who]
	r.mu.RUnlock()
	if ok {
		return emp, nil
	}

	emp, err := r.reader.Employee(ctx, who)
	if err != nil {
		return payroll.Employee{}, err
	}

	r.mu.Lock()
	r.cache[who] = emp
	r.mu.Unlock()
	return emp, nil
}

// Refresh drops the cached record for one address and re-reads it.
func (r *RegistryProjection) Refresh(ctx context.Context, who common.Address) (payroll.Employee, error) {
	r.mu.Lock()
	delete(r.cache, who)
	r.mu.Unlock()
	return r.Get(ctx, who)
}

// RefreshAll discards the address list and every cached record, then
// re-reads the list. Individual records reload lazily on next access.
func (r *RegistryProjection) RefreshAll(ctx context.Context) error {
	r.mu.Lock()
	r.addrs = nil
	r.haveList = false
	r.cache = make(map[common.Address]payroll.Employee)
	r.mu.Unlock()

	if _, err := r.AllAddresses(ctx); err != nil {
		return err
	}
	r.logger.Debug("registry projection refreshed")
	return nil
}

// AbsoluteIndex resolves an address to its index within the full registry
// via a fresh linear scan. Settlement of a single employee must use this
// index, never the position within a filtered or paginated view.
func (r *RegistryProjection) AbsoluteIndex(ctx context.Context, who common.Address) (uint64, error) {
	addrs, err := r.reader.AllEmployees(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.addrs = addrs
	r.haveList = true
	r.mu.Unlock()

	for i, addr := range addrs {
		if addr == who {
			return uint64(i), nil
		}
	}
	return 0, fmt.Errorf("address %s not in registry", who.Hex())
}
