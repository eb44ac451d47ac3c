package ratelimit

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

func TestNewBandwidthUnlimited(t *testing.T) {
	if bw := NewBandwidth(0, 1024); bw != nil {
		t.Fatal("zero rate should mean no limiter")
	}
	var bw *Bandwidth
	if bw.Limit() != 0 {
		t.Error("nil Bandwidth should report 0")
	}
	if err := bw.WaitN(context.Background(), 1<<20); err != nil {
		t.Errorf("nil Bandwidth WaitN: %v", err)
	}
	r := bytes.NewReader([]byte("abc"))
	if bw.Reader(context.Background(), r) != io.Reader(r) {
		t.Error("nil Bandwidth should return the reader unchanged")
	}
}

func TestBandwidthThrottlesReads(t *testing.T) {
	// 20 KiB/s with 4 KiB burst: 12 KiB needs ~400ms after the first burst
	bw := NewBandwidth(20*1024, 4*1024)
	if bw.Limit() != 20*1024 {
		t.Fatalf("Limit() = %d", bw.Limit())
	}

	data := make([]byte, 12*1024)
	start := time.Now()
	n, err := io.Copy(io.Discard, bw.Reader(context.Background(), bytes.NewReader(data)))
	elapsed := time.Since(start)

	if err != nil || n != int64(len(data)) {
		t.Fatalf("copy = %d, %v", n, err)
	}
	if elapsed < 300*time.Millisecond {
		t.Errorf("read finished in %v, expected throttling", elapsed)
	}
}

func TestBandwidthCancelled(t *testing.T) {
	bw := NewBandwidth(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bw.WaitN(ctx, 10); err == nil {
		t.Error("expected error from cancelled context")
	}
}
