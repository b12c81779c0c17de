package util

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
)

// BenchmarkPipe measures one short attacker session through the relay
// loop with a mirror attached.
func BenchmarkPipe(b *testing.B) {
	payload := bytes.Repeat([]byte("X"), DefaultBufSize)

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		attackerClient, attackerServer := tcpPair(b)
		upstream := echoUpstream(b)

		go func() {
			attackerClient.Write(payload)               //nolint:errcheck
			attackerClient.(*net.TCPConn).CloseWrite() //nolint:errcheck
			io.Copy(io.Discard, attackerClient)         //nolint:errcheck
			attackerClient.Close()
		}()
		Pipe(context.Background(), attackerServer, upstream, io.Discard) //nolint:errcheck
	}
}

// BenchmarkBufPool measures the allocation advantage of sync.Pool
// buffer reuse versus fresh allocation.
func BenchmarkBufPool(b *testing.B) {
	b.Run("pool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := GetBuf()
			_ = (*buf)[0]
			PutBuf(buf)
		}
	})
	b.Run("alloc", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf := make([]byte, DefaultBufSize)
			_ = buf[0]
		}
	})
}
