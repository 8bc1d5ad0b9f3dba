package consultation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestLock(t *testing.T) (*StepLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStepLock(client, 90*time.Second), mr
}

func TestStepLockExcludesSecondHolder(t *testing.T) {
	lock, _ := newTestLock(t)
	id := uuid.New()

	release, err := lock.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := lock.Acquire(context.Background(), id); !errors.Is(err, ErrStepInProgress) {
		t.Fatalf("second acquire: got %v, want ErrStepInProgress", err)
	}

	release()
	release2, err := lock.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestStepLockIsPerConsultation(t *testing.T) {
	lock, _ := newTestLock(t)

	r1, err := lock.Acquire(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer r1()

	r2, err := lock.Acquire(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("acquire other id: %v", err)
	}
	r2()
}

func TestStepLockExpires(t *testing.T) {
	lock, mr := newTestLock(t)
	id := uuid.New()

	if _, err := lock.Acquire(context.Background(), id); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	mr.FastForward(91 * time.Second)

	release, err := lock.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	release()
}
