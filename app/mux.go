package app

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	"github.com/moontrade/tt800/logger"
)

// raftMarker opens every raft transport connection, followed by the shared
// auth. No redis client sends a zero byte first.
const raftMarker = "\x00tt800-raft\x00"

const sniffTimeout = 10 * time.Second

// mux splits one listening socket between the raft transport and the redis
// server, routing each connection on its first bytes.
type mux struct {
	ln     net.Listener
	prefix string
	raft   *chanListener
	redis  *chanListener
}

func newMux(ln net.Listener, auth string) *mux {
	return &mux{
		ln:     ln,
		prefix: raftMarker + auth,
		raft:   newChanListener(ln.Addr()),
		redis:  newChanListener(ln.Addr()),
	}
}

func (m *mux) serve() {
	for {
		c, err := m.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				m.raft.Close()
				m.redis.Close()
				return
			}
			logger.Error(err, "accept")
			continue
		}
		go m.route(c)
	}
}

func (m *mux) route(c net.Conn) {
	br := bufio.NewReader(c)
	c.SetReadDeadline(time.Now().Add(sniffTimeout))
	isRaft := true
	for i := 1; i <= len(m.prefix); i++ {
		b, err := br.Peek(i)
		if err != nil {
			c.Close()
			return
		}
		if b[i-1] != m.prefix[i-1] {
			isRaft = false
			break
		}
	}
	c.SetReadDeadline(time.Time{})
	target := m.redis
	if isRaft {
		br.Discard(len(m.prefix))
		target = m.raft
	}
	if !target.push(&peekedConn{Conn: c, r: br}) {
		c.Close()
	}
}

// peekedConn reads through the buffer used for routing.
type peekedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *peekedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// chanListener is a net.Listener fed by the mux.
type chanListener struct {
	addr   net.Addr
	conns  chan net.Conn
	closed chan struct{}
	once   sync.Once
}

func newChanListener(addr net.Addr) *chanListener {
	return &chanListener{
		addr:   addr,
		conns:  make(chan net.Conn),
		closed: make(chan struct{}),
	}
}

func (l *chanListener) push(c net.Conn) bool {
	select {
	case l.conns <- c:
		return true
	case <-l.closed:
		return false
	}
}

func (l *chanListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *chanListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *chanListener) Addr() net.Addr {
	return l.addr
}

// raftStream is the raft.StreamLayer over the mux.
type raftStream struct {
	*chanListener
	prefix string
	tlscfg *tls.Config
}

func (s *raftStream) Dial(addr raft.ServerAddress, timeout time.Duration,
) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	var c net.Conn
	var err error
	if s.tlscfg != nil {
		c, err = tls.DialWithDialer(dialer, "tcp", string(addr), s.tlscfg)
	} else {
		c, err = dialer.Dial("tcp", string(addr))
	}
	if err != nil {
		return nil, err
	}
	if _, err := c.Write([]byte(s.prefix)); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func transportInit(conf Config, m *mux, tlscfg *tls.Config) raft.Transport {
	stream := &raftStream{chanListener: m.raft, prefix: m.prefix,
		tlscfg: tlscfg}
	return raft.NewNetworkTransport(stream, conf.MaxPool, 10*time.Second,
		logger.RaftWriter)
}

// listen binds the node address, wrapped in TLS when a certificate is
// configured.
func listen(conf Config, tlscfg *tls.Config) net.Listener {
	ln, err := net.Listen("tcp", conf.Addr)
	if err != nil {
		logger.Fatal(err, "listen")
	}
	if tlscfg != nil {
		ln = tls.NewListener(ln, tlscfg)
	}
	logger.Print("addr", ln.Addr().String(), "server listening")
	return ln
}

func tlsInit(conf Config) *tls.Config {
	if conf.TLSCertPath == "" {
		return nil
	}
	tlscfg, err := loadTLS(conf.TLSCertPath, conf.TLSKeyPath)
	if err != nil {
		logger.Fatal(err, "tls")
	}
	return tlscfg
}

// loadTLS loads a key pair. The first DNS name of the certificate becomes
// the server name used when dialing peers.
func loadTLS(certFile, keyFile string) (*tls.Config, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	tlscfg := &tls.Config{Certificates: []tls.Certificate{pair}}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, err
	}
	if len(leaf.DNSNames) > 0 {
		tlscfg.ServerName = leaf.DNSNames[0]
	}
	return tlscfg, nil
}
