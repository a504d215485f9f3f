package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"github.com/coroutinely/openfpm-pdata/cmn/nlog"
	"github.com/coroutinely/openfpm-pdata/decomp"
)

// HTTPCollective is the wire-level Collective, grounded on the
// teacher's own listen-and-stream idiom (ghjramos-aistore/xact/xs/tcb.go
// Run/recv) but carried over valyala/fasthttp rather than the teacher's
// internal transport package, per SPEC_FULL.md §2: a fasthttp.Server
// accepts POSTed per-peer buffers tagged with the sender's pid and the
// call's epoch, and a fasthttp.Client does the sends.
type HTTPCollective struct {
	self  decomp.PID
	peers map[decomp.PID]string // address per peer pid, this process excluded

	client *fasthttp.Client
	server *fasthttp.Server
	ln     net.Listener

	mu    sync.Mutex
	boxes map[string]chan meshMsg
}

// NewHTTPCollective starts listening on listenAddr and returns a
// collective that sends to peers by address. Call Close to shut the
// listener down.
func NewHTTPCollective(self decomp.PID, listenAddr string, peers map[decomp.PID]string) (*HTTPCollective, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", listenAddr, err)
	}
	c := &HTTPCollective{
		self:   self,
		peers:  peers,
		client: &fasthttp.Client{},
		boxes:  make(map[string]chan meshMsg),
		ln:     ln,
	}
	c.server = &fasthttp.Server{Handler: c.handle}
	go func() {
		if err := c.server.Serve(ln); err != nil {
			nlog.Errorf("transport: serve %s: %v", listenAddr, err)
		}
	}()
	return c, nil
}

func (c *HTTPCollective) Close() error {
	_ = c.server.Shutdown()
	return c.ln.Close()
}

func (c *HTTPCollective) box(epoch string) chan meshMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.boxes[epoch]
	if !ok {
		ch = make(chan meshMsg, len(c.peers)+1)
		c.boxes[epoch] = ch
	}
	return ch
}

func (c *HTTPCollective) handle(ctx *fasthttp.RequestCtx) {
	epoch := string(ctx.Request.Header.Peek("X-Pdist-Epoch"))
	fromHdr := string(ctx.Request.Header.Peek("X-Pdist-From"))
	from, err := strconv.Atoi(fromHdr)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	body := append([]byte(nil), ctx.PostBody()...)
	c.box(epoch) <- meshMsg{from: decomp.PID(from), buf: body}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (c *HTTPCollective) post(addr, epoch string, buf []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI("http://" + addr + "/x")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set("X-Pdist-Epoch", epoch)
	req.Header.Set("X-Pdist-From", strconv.Itoa(int(c.self)))
	req.SetBody(buf)
	if err := c.client.Do(req, resp); err != nil {
		return fmt.Errorf("transport: post %s: %w", addr, err)
	}
	if sc := resp.StatusCode(); sc != fasthttp.StatusNoContent {
		return fmt.Errorf("transport: post %s: status %d", addr, sc)
	}
	return nil
}

func (c *HTTPCollective) SSendRecv(ctx context.Context, epoch string, send map[decomp.PID][]byte, opt ...CollectiveOpt) (map[decomp.PID][]byte, error) {
	o := mergeOpt(opt)
	g, _ := errgroup.WithContext(ctx)
	for peer, addr := range c.peers {
		addr := addr
		buf := send[peer] // nil is a legitimate "nothing for you" check-in
		g.Go(func() error { return c.post(addr, epoch, buf) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	remaining := len(c.peers)
	if o.Has(ReceiveKnown) {
		remaining = 0
		for _, buf := range send {
			if buf != nil {
				remaining++
			}
		}
	}

	recv := make(map[decomp.PID][]byte)
	box := c.box(epoch)
	for remaining > 0 {
		select {
		case msg := <-box:
			remaining--
			if len(msg.buf) > 0 {
				recv[msg.from] = msg.buf
			}
		case <-ctx.Done():
			return recv, ctx.Err()
		}
	}
	c.mu.Lock()
	delete(c.boxes, epoch)
	c.mu.Unlock()
	return recv, nil
}

func (c *HTTPCollective) SSendRecvOp(ctx context.Context, epoch string, send map[decomp.PID][]byte, merge func(peer decomp.PID, buf []byte) error, opt ...CollectiveOpt) error {
	recv, err := c.SSendRecv(ctx, epoch, send, opt...)
	if err != nil {
		return err
	}
	for peer, buf := range recv {
		if err := merge(peer, buf); err != nil {
			return err
		}
	}
	return nil
}

func (c *HTTPCollective) ProcessingUnits() int { return len(c.peers) + 1 }
func (c *HTTPCollective) ProcessUnitID() int   { return int(c.self) }
