// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package jsoncodec

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
)

// closeTimeout bounds how long we wait to tell the other side we are
// going away.
const closeTimeout = time.Second

// NewWebsocket returns a JSONConn implementation
// that uses the given connection for transport.
func NewWebsocket(conn *websocket.Conn) JSONConn {
	return &wsJSONConn{conn: conn}
}

type wsJSONConn struct {
	conn *websocket.Conn
	// gorilla websockets can have at most one concurrent writer, and
	// one concurrent reader.
	writeMutex sync.Mutex
	readMutex  sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func (conn *wsJSONConn) Send(msg any) error {
	conn.writeMutex.Lock()
	defer conn.writeMutex.Unlock()
	return conn.conn.WriteJSON(msg)
}

func (conn *wsJSONConn) Receive(msg any) error {
	conn.readMutex.Lock()
	defer conn.readMutex.Unlock()
	err := conn.conn.ReadJSON(msg)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return io.EOF
	}
	return err
}

// Close sends a close frame to the other side, if it can, and then
// closes the underlying connection.
func (conn *wsJSONConn) Close() error {
	conn.closeOnce.Do(func() {
		// WriteControl may be called concurrently with the other
		// methods, so the write mutex isn't needed.
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
		conn.closeErr = errors.Trace(conn.conn.Close())
	})
	return conn.closeErr
}
