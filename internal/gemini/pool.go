package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	appLog "jubo/internal/log"
)

// ErrNoCredentials is returned before any network attempt when the key
// list is empty.
var ErrNoCredentials = errors.New("no Gemini API keys configured")

// Terminal messages returned for direct display. 실패해도 사용자에게는
// 항상 표시 가능한 문자열을 돌려준다.
const (
	msgAllExhausted = "❌ 모든 API 키의 할당량이 초과되었습니다. 내일 다시 시도해주세요."
	msgErrFormat    = "❌ 오류: %s"
	msgKeyInUse     = "ℹ️ API 키 #%d 사용 중"
)

// attemptTimeout bounds a single upstream call. The original behavior had
// no timeout at all; this is deliberate hardening.
const attemptTimeout = 90 * time.Second

// GenerationConfig carries the knobs forwarded to the model.
type GenerationConfig struct {
	Temperature     float32
	MaxOutputTokens int32
}

// CallFunc issues one generation request with one credential. Production
// uses APICall (client.go); tests inject fakes.
type CallFunc func(ctx context.Context, apiKey, model, prompt string, cfg GenerationConfig) (string, error)

// ConstructFunc builds a client for a credential without generating
// anything; used only by Init to pick a starting cursor.
type ConstructFunc func(ctx context.Context, apiKey, model string) error

// Result is the displayable outcome of one Generate call.
type Result struct {
	// Text is the generated text, or a terminal failure message when the
	// rotation could not produce one. Always safe to display verbatim.
	Text string

	// Notice is set when a later key in the rotation succeeded, naming
	// the 1-indexed key position.
	Notice string

	// KeyIndex is the 0-based index of the key that succeeded, -1 otherwise.
	KeyIndex int

	// Attempts is the number of upstream calls made.
	Attempts int
}

// Pool rotates through an ordered list of API keys. The cursor persists
// across calls and only ever advances to the index of a successful call,
// so the next Generate starts from a presumed-good credential.
//
// The cursor is mutex-guarded because the cron refresh and HTTP handlers
// share one process.
type Pool struct {
	mu        sync.Mutex
	keys      []string
	model     string
	cursor    int
	call      CallFunc
	construct ConstructFunc
}

// NewPool creates a Pool over the given key order. call defaults to the
// real API client when nil.
func NewPool(keys []string, model string, call CallFunc) *Pool {
	if call == nil {
		call = APICall
	}
	return &Pool{
		keys:      append([]string(nil), keys...),
		model:     model,
		call:      call,
		construct: Construct,
	}
}

// Init walks the key list once constructing a client per key, without
// making a content-generation call, and records the first key that
// constructs cleanly as the starting cursor. Runtime rotation in Generate
// is independent of this walk.
func (p *Pool) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return ErrNoCredentials
	}

	for i := range p.keys {
		if err := p.construct(ctx, p.keys[i], p.model); err != nil {
			appLog.Warn("gemini client construction failed", "key_index", i+1, "err", err)
			continue
		}
		p.cursor = i
		appLog.Info("gemini initialized", "model", p.model, "keys", len(p.keys), "start_index", i)
		return nil
	}

	return errors.New("no usable Gemini API key")
}

// SetCredentials swaps the key list and model, e.g. after a config reload.
// The cursor resets because old indices are meaningless against a new list.
func (p *Pool) SetCredentials(keys []string, model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append([]string(nil), keys...)
	p.model = model
	p.cursor = 0
}

// Generate runs the prompt through the rotation.
//
//   - Success: cursor moves to the successful key; Result.Notice names the
//     key when it was not the first one tried.
//   - Quota/limit failure ("quota" or "limit" in the message, case-
//     insensitive): warn and try the next key; after the last key the
//     fixed all-exhausted message is returned as Text.
//   - Any other failure: stop immediately, return the raw message as Text.
//   - Empty key list: ErrNoCredentials before any call.
//
// At most len(keys) upstream calls are made.
func (p *Pool) Generate(ctx context.Context, prompt string, cfg GenerationConfig) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.keys)
	if n == 0 {
		return Result{KeyIndex: -1}, ErrNoCredentials
	}

	start := p.cursor
	res := Result{KeyIndex: -1}

	for attempt := 0; attempt < n; attempt++ {
		idx := (start + attempt) % n
		res.Attempts = attempt + 1

		text, err := p.callOnce(ctx, p.keys[idx], prompt, cfg)
		if err == nil {
			p.cursor = idx
			res.Text = text
			res.KeyIndex = idx
			if attempt > 0 {
				res.Notice = fmt.Sprintf(msgKeyInUse, idx+1)
				appLog.Info("gemini succeeded after rotation", "key_index", idx+1, "attempts", res.Attempts)
			}
			return res, nil
		}

		if !isQuotaErr(err) {
			// 할당량 외의 오류는 로테이션하지 않고 바로 반환한다.
			appLog.Error("gemini generation failed", err, "key_index", idx+1)
			res.Text = fmt.Sprintf(msgErrFormat, err.Error())
			return res, nil
		}

		appLog.Warn("gemini key quota exhausted", "key_index", idx+1, "remaining", n-attempt-1)
	}

	res.Text = msgAllExhausted
	return res, nil
}

func (p *Pool) callOnce(ctx context.Context, key, prompt string, cfg GenerationConfig) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()
	return p.call(callCtx, key, p.model, prompt, cfg)
}

// isQuotaErr reports whether the upstream failure looks like a rate or
// usage-cap rejection. Substring matching on the message is the documented
// contract; the API does not reliably expose a structured code for this.
func isQuotaErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "limit")
}
