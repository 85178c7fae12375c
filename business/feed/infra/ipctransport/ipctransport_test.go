package ipctransport

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/fd1az/feedpipe/business/feed/domain"
	"github.com/fd1az/feedpipe/internal/ipc"
	"github.com/fd1az/feedpipe/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func TestIngress_DeliversFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingress.sock")

	ingress, err := NewIngress(path, testLogger())
	if err != nil {
		t.Fatalf("NewIngress failed: %v", err)
	}
	defer ingress.Close()

	sender, err := ipc.NewSender()
	if err != nil {
		t.Fatalf("NewSender failed: %v", err)
	}
	defer sender.Close()

	if err := sender.Connect(path); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ctx := context.Background()
	payload := []byte(`{"result":{"channel":"book"}}`)
	go sender.Send(ctx, payload)

	got, err := ingress.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestEgress_PublishesDecodableRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "egress.sock")

	// Downstream consumer side.
	receiver, err := ipc.NewReceiver(path)
	if err != nil {
		t.Fatalf("NewReceiver failed: %v", err)
	}
	defer receiver.Close()

	egress, err := NewEgress(path, testLogger())
	if err != nil {
		t.Fatalf("NewEgress failed: %v", err)
	}
	defer egress.Close()

	want := domain.BboUpdate{
		Instrument:      "BTCUSD-PERP",
		BestBid:         50113.5,
		BestAsk:         50126.0,
		SequenceNumber:  100,
		TimestampMicros: 1654780033786000,
	}

	ctx := context.Background()
	go func() {
		if err := egress.Publish(ctx, want); err != nil {
			t.Errorf("Publish failed: %v", err)
		}
	}()

	frame, err := receiver.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if len(frame) != domain.BboRecordSize {
		t.Fatalf("frame size = %d, want %d", len(frame), domain.BboRecordSize)
	}

	var got domain.BboUpdate
	if err := got.UnmarshalBinary(frame); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if got != want {
		t.Errorf("record = %+v, want %+v", got, want)
	}
}

func TestEgress_PublishWithoutPeerFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nobody.sock")

	egress, err := NewEgress(path, testLogger())
	if err != nil {
		t.Fatalf("NewEgress failed: %v", err)
	}
	defer egress.Close()

	err = egress.Publish(context.Background(), domain.BboUpdate{Instrument: "X"})
	if err == nil {
		t.Fatal("expected publish failure with no peer bound")
	}
}

func TestEgress_ReconnectsAfterPeerRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restart.sock")
	ctx := context.Background()

	receiver, err := ipc.NewReceiver(path)
	if err != nil {
		t.Fatalf("NewReceiver failed: %v", err)
	}

	egress, err := NewEgress(path, testLogger())
	if err != nil {
		t.Fatalf("NewEgress failed: %v", err)
	}
	defer egress.Close()

	update := domain.BboUpdate{Instrument: "X", BestBid: 1, BestAsk: 2, SequenceNumber: 1}

	go egress.Publish(ctx, update)
	if _, err := receiver.Recv(ctx); err != nil {
		t.Fatalf("first Recv failed: %v", err)
	}

	// Restart the downstream consumer.
	receiver.Close()
	time.Sleep(20 * time.Millisecond)

	receiver2, err := ipc.NewReceiver(path)
	if err != nil {
		t.Fatalf("rebind failed: %v", err)
	}
	defer receiver2.Close()

	// The first publish after the restart may fail while the dead
	// connection is torn down; a later change must get through.
	deadline := time.Now().Add(2 * time.Second)
	delivered := make(chan struct{})
	go func() {
		if _, err := receiver2.Recv(ctx); err == nil {
			close(delivered)
		}
	}()

	for time.Now().Before(deadline) {
		update.SequenceNumber++
		egress.Publish(ctx, update)

		select {
		case <-delivered:
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	t.Fatal("egress never reconnected to the restarted peer")
}
