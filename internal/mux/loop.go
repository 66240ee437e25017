package mux

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"hexe/internal/config"
	"hexe/internal/names"
	"hexe/internal/pop"
	"hexe/internal/ses"
	"hexe/internal/socketdir"
)

const (
	frameInterval     = 16 * time.Millisecond // ~60 Hz
	statusInterval    = 250 * time.Millisecond
	shellSyncInterval = time.Second
	pollCeiling       = 100 * time.Millisecond
)

const (
	termInit = "\033[?1049h\033[2J\033[3J\033[H\033[0m\033(B\033)0\033[?25l\033[?1000h\033[?1006h"
	termExit = "\033[?1000l\033[?1006l\033[?25h\033[0m\033[?1049l"
)

// Options configures a mux run.
type Options struct {
	Name    string
	Attach  string // detached-session name or UUID prefix
	Debug   bool
	Logfile string
}

// Run is the mux entry point: terminal setup, SES connection, state
// construction (fresh or reattached), then the poll loop until quit or
// detach.
func Run(opts Options) error {
	if opts.Logfile != "" {
		f, err := os.OpenFile(opts.Logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open logfile: %w", err)
		}
		log.SetOutput(f)
	} else {
		log.SetOutput(discard{})
	}

	fd := int(os.Stdin.Fd())
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return fmt.Errorf("get terminal size (is this a terminal?): %w", err)
	}

	cfg, cfgErr := config.Load(config.FilePath())
	s := NewState(cfg, cols, rows)
	s.Name = opts.Name
	if s.Name == "" {
		s.Name = names.Generate()
	}

	// SES is preferred but optional: without it panes are local and
	// detach is unavailable.
	client, sesErr := ses.Connect(opts.Debug, opts.Logfile)
	if sesErr == nil {
		s.Ses = client
	}

	if opts.Attach != "" {
		if s.Ses == nil {
			return fmt.Errorf("attach: %w", sesErr)
		}
		if err := s.Reattach(opts.Attach); err != nil {
			return fmt.Errorf("attach %q: %w", opts.Attach, err)
		}
		if err := s.Ses.OpenVT(); err != nil {
			return fmt.Errorf("attach vt: %w", err)
		}
	} else {
		if s.Ses != nil {
			if err := s.Ses.Register(s.UUID, s.Name); err != nil {
				return fmt.Errorf("register: %w", err)
			}
			if err := s.Ses.OpenVT(); err != nil {
				return fmt.Errorf("open vt: %w", err)
			}
		}
		x, y, w, h := s.LayoutArea()
		p, err := s.spawnPane(0, x, y, w, h)
		if err != nil {
			return fmt.Errorf("first pane: %w", err)
		}
		s.AddTab(NewTab(DefaultTabName(0), NewLayout(x, y, w, h, p)))
		s.focusSplit()
	}

	if err := s.StartIPC(socketdir.Path(socketdir.TypeMux, s.Name)); err != nil {
		log.Printf("ipc unavailable: %v", err)
	}
	defer s.CloseIPC()

	// Detect the real terminal's colors before entering raw mode.
	s.ProbeColors()

	// Failing to enter raw mode is fatal, like the size query above.
	restore, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	s.Out.WriteString(termInit)
	defer func() {
		s.Out.WriteString(termExit)
		term.Restore(fd, restore)
	}()

	if cfgErr != nil {
		s.Notify("config: " + cfgErr.Error())
	}
	watcher, err := config.Watch(config.FilePath())
	if err == nil {
		defer watcher.Close()
	}

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)

	r := NewRenderer(cols, rows)
	err = s.loop(r, watcher, winch)
	s.teardown()
	return err
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// loop is the single-threaded poll loop. All reads are gated on poll
// readability; nothing else blocks.
func (s *State) loop(r *Renderer, watcher *config.Watcher, winch chan os.Signal) error {
	readBuf := make([]byte, 4096)
	nextFrame := time.Now()
	var lastStatus, lastShellSync time.Time

	for !s.Quit {
		now := time.Now()

		// Dead panes are swept at the top of the tick so the poll set
		// below only holds live fds.
		s.SweepDead()
		if s.Quit {
			break
		}

		s.ProcessKeyTimers(now)
		s.tickPopups(now)
		s.ResolvePopups()

		// Drain out-of-band channels without blocking.
		select {
		case <-winch:
			s.handleResize(r)
		default:
		}
		if watcher != nil {
			select {
			case <-watcher.Changed:
				s.reloadConfig()
			default:
			}
		}

		if !lastShellSync.Add(shellSyncInterval).After(now) {
			lastShellSync = now
			s.syncFocusedShell()
		}

		// Compose the poll set: stdin, SES ctl+vt, the IPC listener, and
		// each live local pane fd in view.
		fds := []unix.PollFd{{Fd: int32(os.Stdin.Fd()), Events: unix.POLLIN}}
		tags := []any{"stdin"}
		if s.Ses != nil {
			if fd := s.Ses.CtlFd(); fd >= 0 {
				fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
				tags = append(tags, "ctl")
			}
			if fd := s.Ses.VTFd(); fd >= 0 {
				fds = append(fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
				tags = append(tags, "vt")
			}
		}
		if s.IPCFile != nil {
			fds = append(fds, unix.PollFd{Fd: int32(s.IPCFile.Fd()), Events: unix.POLLIN})
			tags = append(tags, "ipc")
		}
		for _, p := range s.localPanesInView() {
			fds = append(fds, unix.PollFd{Fd: int32(p.Ptm.Fd()), Events: unix.POLLIN})
			tags = append(tags, p)
		}

		timeout := s.pollTimeout(now, nextFrame, lastStatus)
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err != nil && !errors.Is(err, unix.EINTR) {
			return fmt.Errorf("poll: %w", err)
		}

		if n > 0 {
			for i, pfd := range fds {
				if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
					continue
				}
				switch tag := tags[i].(type) {
				case string:
					switch tag {
					case "stdin":
						rn, rerr := os.Stdin.Read(readBuf)
						if rn > 0 {
							s.HandleStdin(readBuf[:rn])
						}
						if rerr != nil {
							s.Quit = true
						}
					case "ctl":
						s.drainCtl()
					case "vt":
						s.readVTFrame()
					case "ipc":
						s.TryAccept()
					}
				case *Pane:
					if _, perr := tag.Poll(readBuf); perr != nil {
						tag.Dead = true
					}
				}
			}
		}

		s.forwardOSCQueries()
		s.ResolvePopups()
		s.NormalizeFocus()

		now = time.Now()
		if !lastStatus.Add(statusInterval).After(now) {
			lastStatus = now
			r.Invalidate()
		}
		if !now.Before(nextFrame) {
			frame := s.RenderFrame(r)
			if len(frame) > 0 {
				s.Out.Write(frame)
			}
			nextFrame = now.Add(frameInterval)
		}
	}
	return nil
}

// pollTimeout returns the earliest of frame pacing, status refresh, key
// timer and popup deadlines, capped at 100 ms.
func (s *State) pollTimeout(now, nextFrame, lastStatus time.Time) time.Duration {
	timeout := pollCeiling
	if d := nextFrame.Sub(now); d < timeout {
		timeout = d
	}
	if d := lastStatus.Add(statusInterval).Sub(now); d < timeout {
		timeout = d
	}
	if t := s.NextKeyTimerDeadline(); !t.IsZero() {
		if d := t.Sub(now); d < timeout {
			timeout = d
		}
	}
	for _, m := range s.popManagers() {
		if t := m.NextDeadline(); !t.IsZero() {
			if d := t.Sub(now); d < timeout {
				timeout = d
			}
		}
	}
	if timeout < 0 {
		timeout = 0
	}
	return timeout
}

func (s *State) popManagers() []*pop.Manager {
	out := []*pop.Manager{&s.Pop}
	if t := s.CurrentTab(); t != nil {
		out = append(out, &t.Pop)
	}
	if p := s.FocusedPane(); p != nil {
		out = append(out, &p.Pop)
	}
	return out
}

func (s *State) tickPopups(now time.Time) {
	for _, m := range s.popManagers() {
		m.Tick(now)
	}
}

// localPanesInView returns live local-PTY panes of the current tab and the
// visible floats.
func (s *State) localPanesInView() []*Pane {
	var out []*Pane
	if t := s.CurrentTab(); t != nil {
		for _, p := range t.Layout.Splits {
			if p.Ptm != nil && !p.Dead {
				out = append(out, p)
			}
		}
	}
	for _, f := range s.VisibleFloats(s.ActiveTab) {
		if f.Ptm != nil && !f.Dead {
			out = append(out, f)
		}
	}
	return out
}

// drainCtl consumes one unsolicited control frame (a fire-and-forget ack);
// sync requests never overlap this because the loop is single-threaded.
func (s *State) drainCtl() {
	if s.Ses == nil {
		return
	}
	if _, _, err := ses.ReadMsg(s.Ses.Ctl); err != nil {
		s.sesLost()
	}
}

// readVTFrame routes one frame of pane output; a zero-length payload is
// the daemon's EOF marker for that pane.
func (s *State) readVTFrame() {
	if s.Ses == nil {
		return
	}
	paneID, payload, err := s.Ses.ReadVT()
	if err != nil {
		s.sesLost()
		return
	}
	p := s.FindPaneByID(paneID)
	if p == nil {
		return
	}
	if len(payload) == 0 {
		p.Dead = true
		return
	}
	p.Feed(payload)
}

// sesLost marks every SES-backed pane dead when the daemon connection
// drops; the sweep turns that into closes and, eventually, the exit path.
func (s *State) sesLost() {
	s.Ses.Close()
	s.Ses = nil
	for _, t := range s.Tabs {
		for _, p := range t.Layout.Splits {
			if p.Ptm == nil {
				p.Dead = true
			}
		}
	}
	for _, f := range s.Floats {
		if f.Ptm == nil {
			f.Dead = true
		}
	}
	s.Notify("session daemon connection lost")
}

// forwardOSCQueries pushes pending child OSC queries upstream and arms the
// reply proxy for the querying pane.
func (s *State) forwardOSCQueries() {
	for _, t := range s.Tabs {
		for _, p := range t.Layout.Splits {
			s.forwardOSCQuery(p)
		}
	}
	for _, f := range s.Floats {
		s.forwardOSCQuery(f)
	}
}

// handleResize reacts to SIGWINCH.
func (s *State) handleResize(r *Renderer) {
	cols, rows, err := term.GetSize(int(os.Stdin.Fd()))
	if err != nil || cols < 4 || rows < 4 {
		return
	}
	s.Resize(cols, rows)
	r.Resize(cols, rows)
}

// reloadConfig re-reads the config file and applies keybinds and status
// layout on the fly.
func (s *State) reloadConfig() {
	cfg, err := config.Load(config.FilePath())
	if err != nil {
		s.Notify("config reload: " + err.Error())
		return
	}
	s.Cfg = cfg
	s.Binds = ParseBinds(cfg.Keybinds)
	newStatusH := 0
	if cfg.Status.Enabled {
		newStatusH = 1
	}
	if newStatusH != s.StatusH {
		s.StatusH = newStatusH
		s.Resize(s.TermW, s.TermH)
	}
	s.Notify("config reloaded")
}

// syncFocusedShell refreshes the focused pane's process details from SES.
func (s *State) syncFocusedShell() {
	p := s.FocusedPane()
	if p == nil || s.Ses == nil || p.Ses == nil {
		return
	}
	info, err := s.Ses.PaneInfo(p.UUID)
	if err != nil {
		return
	}
	sh := s.PaneShells[p.UUID]
	changed := sh.Cmd != info.Cmd || sh.Cwd != info.Cwd
	sh.UUID = p.UUID
	sh.Cmd = info.Cmd
	sh.Cwd = info.Cwd
	s.PaneShells[p.UUID] = sh
	if changed {
		s.Ses.UpdatePaneShell(sh)
	}
	if !info.Alive {
		p.Dead = true
	}
}

// teardown closes panes on the way out. Detach leaves backends to SES;
// quit kills non-sticky panes and orphans sticky floats.
func (s *State) teardown() {
	if s.Detach {
		if s.Ses != nil {
			s.Ses.Close()
		}
		return
	}
	for _, t := range s.Tabs {
		for _, p := range t.Layout.Splits {
			p.Close(true)
		}
	}
	for _, f := range append([]*Pane(nil), s.Floats...) {
		if f.Sticky {
			s.removeFloat(f, false) // orphaned, not killed
			continue
		}
		f.Close(true)
	}
	if s.Ses != nil {
		s.Ses.Close()
	}
}
