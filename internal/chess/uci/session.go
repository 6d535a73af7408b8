package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultReadyTimeout = 4 * time.Second
	newGameRetryCount   = 3
	newGameRetryDelay   = 150 * time.Millisecond
)

// Options configure the engine process at startup.
type Options struct {
	Threads int
	HashMB  int
}

// Score is the engine's verdict for a position, from the perspective of the
// side to move. Exactly one field is set: Centipawns for a material/positional
// score, Mate for a forced mate in N plies (negative when the opponent mates).
type Score struct {
	Centipawns *int
	Mate       *int
}

// SearchRequest asks for a fixed-depth search of a single position.
type SearchRequest struct {
	FEN   string
	Depth int
}

// SearchResponse is the terminal result of one search: the best move in
// coordinate form, the score of the deepest info line seen, and the depth
// that score was reported at.
type SearchResponse struct {
	BestMove  string
	Score     Score
	Depth     int
	Principal []string
}

// Session owns one engine subprocess and its line-oriented protocol.
// Search holds an internal mutex, so a Session is safe for concurrent use;
// requests execute one at a time against the single process.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	search sync.Mutex
}

// NewSession spawns the engine process and runs the uci/isready handshake.
// ctx bounds the handshake only; the process itself lives until Close.
func NewSession(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
	}

	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Search sends the position and a depth-limited go command, then reads until
// the terminal bestmove line, tolerating interleaved info lines.
func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if req.Depth <= 0 {
		return SearchResponse{}, fmt.Errorf("search depth must be positive: %d", req.Depth)
	}

	if err := s.send(buildPositionCommand(req.FEN)); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}
	if err := s.send("go depth " + strconv.Itoa(req.Depth) + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(req.Depth))
	defer cancel()

	var result SearchResponse
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			return SearchResponse{}, fmt.Errorf("read line: %w", err)
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "info "):
			if info, ok := parseInfo(line); ok && info.Depth >= result.Depth {
				result.Score = info.Score
				result.Depth = info.Depth
				result.Principal = info.Principal
			}
		case strings.HasPrefix(line, "bestmove"):
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				result.BestMove = strings.ToLower(parts[1])
			}
			return result, nil
		}
	}
}

func buildPositionCommand(fen string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	sb.WriteString("\n")
	return sb.String()
}

func computeSearchTimeout(depth int) time.Duration {
	base := time.Duration(depth) * 300 * time.Millisecond
	if base < 6*time.Second {
		base = 6 * time.Second
	}
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	return base
}

type infoLine struct {
	Depth     int
	Score     Score
	Principal []string
}

func parseInfo(line string) (infoLine, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return infoLine{}, false
	}

	var (
		info     infoLine
		scoreSet bool
	)

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					info.Depth = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				kind := parts[i+1]
				if v, err := strconv.Atoi(parts[i+2]); err == nil {
					val := v
					switch kind {
					case "cp":
						info.Score = Score{Centipawns: &val}
						scoreSet = true
					case "mate":
						info.Score = Score{Mate: &val}
						scoreSet = true
					}
				}
				i += 2
			}
		case "pv":
			if i+1 < len(parts) {
				info.Principal = append([]string(nil), parts[i+1:]...)
			}
			i = len(parts)
		}
	}

	if !scoreSet {
		return infoLine{}, false
	}
	return info, true
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}

	for attempt := 1; attempt <= newGameRetryCount; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryCount {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin != nil {
		s.stdin.Close()
	}

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}

	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	if err := s.applyOptions(opt); err != nil {
		return err
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}

	return nil
}

func (s *Session) applyOptions(opt Options) error {
	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}
	hash := opt.HashMB
	if hash <= 0 {
		hash = 64
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threads),
		fmt.Sprintf("setoption name Hash value %d\n", hash),
		"setoption name MultiPV value 1\n",
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}
