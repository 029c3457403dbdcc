package realtime

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
)

const (
	acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	// clients only send small control messages on this socket
	maxFrameSize = 64 << 10
)

const (
	opText  byte = 0x1
	opClose byte = 0x8
	opPing  byte = 0x9
	opPong  byte = 0xA
)

var (
	ErrNotWebsocket  = errors.New("not a websocket handshake")
	errFrameTooLarge = errors.New("websocket frame too large")
	errUnmaskedFrame = errors.New("client frame is not masked")
	errFragmented    = errors.New("fragmented frames are not supported")
	errUnsupportedOp = errors.New("unsupported websocket opcode")
)

// Conn is a minimal server-side WebSocket connection carrying JSON text frames.
// Writes are serialised, so a hub may publish while the read loop answers pings.
type Conn struct {
	conn      net.Conn
	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(c net.Conn) *Conn {
	return &Conn{conn: c}
}

// Upgrade validates the handshake, hijacks the response and answers 101.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	if r.Method != http.MethodGet ||
		!strings.EqualFold(r.Header.Get("Upgrade"), "websocket") ||
		!headerContains(r.Header.Get("Connection"), "upgrade") {
		return nil, ErrNotWebsocket
	}
	if v := r.Header.Get("Sec-WebSocket-Version"); v != "" && v != "13" {
		return nil, fmt.Errorf("%w: version %s", ErrNotWebsocket, v)
	}
	key := strings.TrimSpace(r.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		return nil, fmt.Errorf("%w: missing key", ErrNotWebsocket)
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, errors.New("connection does not support hijacking")
	}
	raw, rw, err := hj.Hijack()
	if err != nil {
		return nil, fmt.Errorf("hijack: %w", err)
	}

	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + computeAcceptKey(key) + "\r\n\r\n"
	if _, err = rw.WriteString(resp); err == nil {
		err = rw.Flush()
	}
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("write handshake: %w", err)
	}
	return newConn(raw), nil
}

func headerContains(header, token string) bool {
	for _, part := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

func computeAcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ReadJSON blocks until the next text frame and decodes it into v.
// Pings are answered and pongs skipped on the way; a close frame yields io.EOF.
func (c *Conn) ReadJSON(v interface{}) error {
	for {
		op, payload, err := c.readFrame()
		if err != nil {
			return err
		}
		switch op {
		case opText:
			if len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, v)
		case opPing:
			if err := c.writeFrame(opPong, payload); err != nil {
				return err
			}
		case opPong:
		case opClose:
			return io.EOF
		default:
			return errUnsupportedOp
		}
	}
}

func (c *Conn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeFrame(opText, data)
}

// Close sends a close frame once and closes the socket. Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.writeFrame(opClose, nil)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) readFrame() (byte, []byte, error) {
	var head [2]byte
	if _, err := io.ReadFull(c.conn, head[:]); err != nil {
		return 0, nil, err
	}
	fin := head[0]&0x80 != 0
	op := head[0] & 0x0F
	if head[1]&0x80 == 0 {
		return 0, nil, errUnmaskedFrame
	}

	var length uint64
	switch n := head[1] & 0x7F; n {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(c.conn, ext[:]); err != nil {
			return 0, nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(c.conn, ext[:]); err != nil {
			return 0, nil, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	default:
		length = uint64(n)
	}
	if length > maxFrameSize {
		return 0, nil, errFrameTooLarge
	}

	var mask [4]byte
	if _, err := io.ReadFull(c.conn, mask[:]); err != nil {
		return 0, nil, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return 0, nil, err
	}
	for i := range payload {
		payload[i] ^= mask[i%4]
	}

	if !fin {
		return 0, nil, errFragmented
	}
	return op, payload, nil
}

// writeFrame sends one unmasked final frame in a single write.
func (c *Conn) writeFrame(op byte, payload []byte) error {
	n := len(payload)
	frame := make([]byte, 0, n+10)
	frame = append(frame, 0x80|op)
	switch {
	case n < 126:
		frame = append(frame, byte(n))
	case n <= 0xFFFF:
		frame = append(frame, 126)
		frame = binary.BigEndian.AppendUint16(frame, uint16(n))
	default:
		frame = append(frame, 127)
		frame = binary.BigEndian.AppendUint64(frame, uint64(n))
	}
	frame = append(frame, payload...)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write(frame)
	return err
}
