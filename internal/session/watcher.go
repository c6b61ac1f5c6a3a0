package session

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/nhle/noticeboard/internal/model"
)

const debounceDelay = 100 * time.Millisecond

// FileProvider reads the session file written by the login flow and
// watches it for changes.
type FileProvider struct {
	path     string
	tokens   TokenSource
	log      zerolog.Logger
	now      func() time.Time
	debounce time.Duration
}

// NewFileProvider creates a provider for the session file at path.
func NewFileProvider(path string, tokens TokenSource, log zerolog.Logger) *FileProvider {
	return &FileProvider{
		path:     filepath.Clean(path),
		tokens:   tokens,
		log:      log,
		now:      time.Now,
		debounce: debounceDelay,
	}
}

// Current reads the session now. Read failures, including an expired
// token, yield a session without a token.
func (p *FileProvider) Current() model.Session {
	s, err := Read(p.path, p.tokens, p.now())
	if err != nil {
		p.log.Warn().Err(err).Str("path", p.path).Msg("session unavailable")
		s.HasToken = false
	}
	return s
}

// Watch emits the current session and then re-reads the file whenever
// its directory reports a change to it. Identical consecutive sessions
// are not re-emitted. A reader that falls behind only sees the latest
// session. The channel closes when ctx ends.
func (p *FileProvider) Watch(ctx context.Context) <-chan model.Session {
	out := make(chan model.Session, 1)
	last := p.Current()
	out <- last

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		p.log.Warn().Err(err).Str("dir", dir).Msg("session watch disabled")
		go closeOnDone(ctx, out)
		return out
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		p.log.Warn().Err(err).Msg("session watch disabled")
		go closeOnDone(ctx, out)
		return out
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		p.log.Warn().Err(err).Str("dir", dir).Msg("session watch disabled")
		go closeOnDone(ctx, out)
		return out
	}

	go p.run(ctx, w, out, last)
	return out
}

func (p *FileProvider) run(ctx context.Context, w *fsnotify.Watcher, out chan model.Session, last model.Session) {
	defer close(out)
	defer func() { _ = w.Close() }()

	// A nil channel blocks until the first relevant event arms the timer.
	var fire <-chan time.Time
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != p.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// debounce to avoid partial writes
			if timer == nil {
				timer = time.NewTimer(p.debounce)
			} else {
				timer.Reset(p.debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			p.log.Warn().Err(err).Msg("session watcher error")

		case <-fire:
			fire = nil
			s := p.Current()
			if s == last {
				continue
			}
			last = s
			p.log.Info().
				Str("role", string(s.Role)).
				Bool("authenticated", s.Authenticated()).
				Msg("session changed")
			select {
			case <-out:
			default:
			}
			out <- s
		}
	}
}

func closeOnDone(ctx context.Context, ch chan model.Session) {
	<-ctx.Done()
	close(ch)
}
