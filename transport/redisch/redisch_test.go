package redisch

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dannyswat/vcursor"
)

func TestTopic(t *testing.T) {
	if got := Topic("doc-1"); got != "vcursor:doc:doc-1" {
		t.Errorf("Topic() = %q", got)
	}
}

func TestPublishSubscribe(t *testing.T) {
	addr := os.Getenv("VCURSOR_TEST_REDIS")
	if addr == "" {
		t.Skip("VCURSOR_TEST_REDIS not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	a, err := Subscribe(ctx, rdb, "redisch-test", nil)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer a.Close()
	b, err := Subscribe(ctx, rdb, "redisch-test", nil)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer b.Close()
	go b.Run(ctx)

	got := make(chan vcursor.Message, 1)
	b.On(vcursor.MsgRequestCursorRefreshAll, func(m vcursor.Message) { got <- m })

	if err := a.Send(vcursor.Message{
		Type:    vcursor.MsgRequestCursorRefreshAll,
		Refresh: &vcursor.RefreshRequest{RequesterID: "alice#1", Reason: "joined"},
	}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case m := <-got:
		if m.Refresh.RequesterID != "alice#1" {
			t.Errorf("requester = %q", m.Refresh.RequesterID)
		}
	case <-ctx.Done():
		t.Fatal("message not received")
	}
}
