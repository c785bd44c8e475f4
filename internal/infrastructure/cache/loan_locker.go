package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InMemoryLoanLocker serializes work per loan inside one process
type InMemoryLoanLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*loanLock
	wait  time.Duration
}

// loanLock is a one-slot semaphore; refs counts holders and waiters so the
// entry is dropped once nobody needs it.
type loanLock struct {
	slot chan struct{}
	refs int
}

// NewInMemoryLoanLocker creates a locker. Lock gives up after wait; zero
// waits until the context is done.
func NewInMemoryLoanLocker(wait time.Duration) *InMemoryLoanLocker {
	return &InMemoryLoanLocker{
		locks: make(map[uuid.UUID]*loanLock),
		wait:  wait,
	}
}

// Lock blocks until the loan is free, the wait elapses or ctx is done
func (l *InMemoryLoanLocker) Lock(ctx context.Context, loanID uuid.UUID) (func(), error) {
	lk := l.acquireRef(loanID)

	waitCtx, cancel := withWait(ctx, l.wait)
	defer cancel()

	select {
	case lk.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.slot
				l.releaseRef(loanID)
			})
		}, nil
	case <-waitCtx.Done():
		l.releaseRef(loanID)
		return nil, lockError(ctx)
	}
}

func (l *InMemoryLoanLocker) acquireRef(loanID uuid.UUID) *loanLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[loanID]
	if !ok {
		lk = &loanLock{slot: make(chan struct{}, 1)}
		l.locks[loanID] = lk
	}
	lk.refs++
	return lk
}

func (l *InMemoryLoanLocker) releaseRef(loanID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk := l.locks[loanID]
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, loanID)
	}
}

// Held returns the number of loans with a holder or a waiter
func (l *InMemoryLoanLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// unlockScript deletes the lock only while it still carries our token, so an
// expired lease taken over by another instance is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	defaultLockPrefix = "lms:loan-lock:"
	lockRetryMin      = 10 * time.Millisecond
	lockRetryMax      = 200 * time.Millisecond
)

// RedisLoanLocker serializes work per loan across instances with a leased
// SET NX key. The lease bounds how long a crashed holder blocks the loan.
type RedisLoanLocker struct {
	client redis.Cmdable
	lease  time.Duration
	wait   time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisLoanLocker creates a locker holding each lock for at most lease and
// waiting up to wait to acquire it.
func NewRedisLoanLocker(client redis.Cmdable, lease, wait time.Duration, logger *zap.Logger) *RedisLoanLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLoanLocker{
		client: client,
		lease:  lease,
		wait:   wait,
		prefix: defaultLockPrefix,
		logger: logger,
	}
}

// Lock polls SET NX with backoff until the lock is taken or the wait elapses
func (l *RedisLoanLocker) Lock(ctx context.Context, loanID uuid.UUID) (func(), error) {
	key := l.prefix + loanID.String()
	token := uuid.NewString()

	waitCtx, cancel := withWait(ctx, l.wait)
	defer cancel()

	backoff := lockRetryMin
	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.lease).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire loan lock: %w", err)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, lockError(ctx)
		case <-timer.C:
		}
		backoff = min(backoff*2, lockRetryMax)
	}
}

func (l *RedisLoanLocker) unlockFunc(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// the request context may already be cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn("failed to release loan lock; it expires with its lease",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		})
	}
}

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// lockError reports a caller cancellation as such and a timeout as ErrLoanLocked
func lockError(ctx context.Context) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return lending.ErrLoanLocked
}

var (
	_ lending.LoanLocker = (*InMemoryLoanLocker)(nil)
	_ lending.LoanLocker = (*RedisLoanLocker)(nil)
)
