package reactor

import "time"

// ConnectionCallback fires on connection-up and connection-down.
type ConnectionCallback func(conn *TcpConnection)

// MessageCallback fires when bytes have been read into the connection's
// input buffer.
type MessageCallback func(conn *TcpConnection, buf *Buffer, ts time.Time)

// WriteCompleteCallback fires once the output buffer has been fully
// drained to the kernel.
type WriteCompleteCallback func(conn *TcpConnection)

// HighWaterMarkCallback fires when the queued output size crosses
// highWaterMark, edge-triggered.
type HighWaterMarkCallback func(conn *TcpConnection, queuedBytes int)

// CloseCallback fires once a connection has fully torn down; TcpServer and
// TcpClient use it to remove the connection from their maps.
type CloseCallback func(conn *TcpConnection)

func defaultMessageCallback(conn *TcpConnection, buf *Buffer, ts time.Time) {
	buf.RetrieveAll()
}
