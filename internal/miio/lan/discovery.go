package lan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/foraone/fora-contrib-app-miio/internal/miio"
)

// Broadcast cadence bounds. The effective interval derives from the
// discovery cache time so re-announcements line up with freshness.
const (
	minBroadcastInterval     = 5 * time.Second
	maxBroadcastInterval     = 60 * time.Second
	defaultBroadcastInterval = 30 * time.Second
)

// browser is one running LAN discovery session. It broadcasts handshake
// frames and turns the responses into registrations, suppressing
// re-announcements of devices seen within the cache window.
type browser struct {
	conn      *net.UDPConn
	regs      chan miio.Registration
	cacheTime time.Duration
	interval  time.Duration

	// lastSeen tracks announcement freshness per device id.
	lastSeen map[uint32]time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   Logger
}

// newBrowser opens the discovery socket and starts the broadcast and
// receive loops.
func newBrowser(opts miio.BrowseOptions, logger Logger) (*browser, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("opening discovery socket: %w", err)
	}
	if err := enableBroadcast(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling broadcast: %w", err)
	}

	cacheTime := time.Duration(opts.CacheTime) * time.Second
	interval := cacheTime / 2
	if opts.CacheTime <= 0 {
		interval = defaultBroadcastInterval
	}
	if interval < minBroadcastInterval {
		interval = minBroadcastInterval
	}
	if interval > maxBroadcastInterval {
		interval = maxBroadcastInterval
	}

	b := &browser{
		conn:      conn,
		regs:      make(chan miio.Registration, 16),
		cacheTime: cacheTime,
		interval:  interval,
		lastSeen:  make(map[uint32]time.Time),
		done:      make(chan struct{}),
		logger:    logger,
	}

	b.wg.Add(2)
	go b.broadcastLoop()
	go b.receiveLoop()

	return b, nil
}

// Registrations streams discovery announcements.
func (b *browser) Registrations() <-chan miio.Registration {
	return b.regs
}

// Stop tears down the discovery session.
func (b *browser) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.conn.Close()
		b.wg.Wait()
		close(b.regs)
	})
}

// broadcastLoop sends the handshake frame to the broadcast address on a
// fixed cadence, starting immediately.
func (b *browser) broadcastLoop() {
	defer b.wg.Done()

	target := &net.UDPAddr{IP: net.IPv4bcast, Port: Port}
	hello := helloPacket()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if _, err := b.conn.WriteToUDP(hello, target); err != nil {
			select {
			case <-b.done:
				return
			default:
			}
			b.logger.Warn("discovery broadcast failed", "error", err)
		}

		select {
		case <-ticker.C:
		case <-b.done:
			return
		}
	}
}

// receiveLoop parses handshake responses into registrations.
func (b *browser) receiveLoop() {
	defer b.wg.Done()

	buf := make([]byte, 1500)
	for {
		n, addr, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-b.done:
				return
			default:
			}
			if fatalReadError(err) {
				return
			}
			// Transient read failures must not end the session while
			// broadcasts are still going out.
			b.logger.Warn("discovery read failed", "error", err)
			continue
		}

		p, err := decodePacket(buf[:n])
		if err != nil {
			b.logger.Debug("ignoring malformed discovery response",
				"from", addr.String(), "error", err)
			continue
		}
		// Data packets are not discovery responses.
		if len(p.Payload) != 0 {
			continue
		}

		if !b.fresh(p.DeviceID) {
			continue
		}

		reg := miio.Registration{
			ID:      int64(p.DeviceID),
			Address: addr.IP.String(),
		}
		if token, ok := p.revealedToken(); ok {
			reg.Token = hex.EncodeToString(token)
		}

		select {
		case b.regs <- reg:
		case <-b.done:
			return
		}
	}
}

// fatalReadError reports whether the receive loop should give up on the
// socket. Anything short of a closed connection is treated as transient.
func fatalReadError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// fresh records a sighting and reports whether it should be announced.
// Devices answered within the cache window stay suppressed.
func (b *browser) fresh(deviceID uint32) bool {
	now := time.Now()
	if b.cacheTime > 0 {
		if seen, ok := b.lastSeen[deviceID]; ok && now.Sub(seen) < b.cacheTime {
			return false
		}
	}
	b.lastSeen[deviceID] = now
	return true
}

// enableBroadcast sets SO_BROADCAST on the discovery socket.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
