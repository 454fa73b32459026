package services

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/common"
	"github.com/dmitrijs2005/gophmaster/internal/cryptox"
	"github.com/dmitrijs2005/gophmaster/internal/logging"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
	"github.com/dmitrijs2005/gophmaster/internal/server/events"
	"github.com/dmitrijs2005/gophmaster/internal/server/models"
	"github.com/dmitrijs2005/gophmaster/internal/server/peer"
	"github.com/dmitrijs2005/gophmaster/internal/server/sessions"
	"github.com/dmitrijs2005/gophmaster/internal/server/store"
	"github.com/dmitrijs2005/gophmaster/internal/server/tokens"
	"github.com/dmitrijs2005/gophmaster/internal/server/validation"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, html string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) SendMail(_ context.Context, to, subject, html string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return false
	}
	m.sent = append(m.sent, sentMail{to, subject, html})
	return true
}

var secretRe = regexp.MustCompile(`#4F46E5;">([A-Za-z0-9]+)</p>`)

// lastSecret returns the code or password in the most recent mail.
func (m *fakeMailer) lastSecret(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	match := secretRe.FindStringSubmatch(m.sent[len(m.sent)-1].html)
	require.Len(t, match, 2, "mail carries no secret")
	return match[1]
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// countingStore counts account updates on top of a MemoryStore.
type countingStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	updates int
}

func (c *countingStore) UpdateAccount(ctx context.Context, a *models.Account) error {
	c.mu.Lock()
	c.updates++
	c.mu.Unlock()
	return c.MemoryStore.UpdateAccount(ctx, a)
}

func (c *countingStore) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) HandleEvent(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type fixture struct {
	svc      *AuthService
	store    *countingStore
	codec    *tokens.Codec
	sessions *sessions.Table
	mailer   *fakeMailer
	events   *recorder
	hasher   *cryptox.PasswordHasher
	clock    *atomic.Int64
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func (f *fixture) advance(d time.Duration) {
	f.clock.Add(int64(d))
}

func newFixture(t *testing.T, settings Settings) *fixture {
	t.Helper()

	st := &countingStore{MemoryStore: store.NewMemoryStore(time.Minute)}
	clock := &atomic.Int64{}
	clock.Store(t0.UnixNano())

	codec, err := tokens.NewCodec(tokens.Options{
		Secret:   []byte("test-secret"),
		Issuer:   "gophmaster",
		Audience: "players",
		Lifetime: 24 * time.Hour,
		Now:      func() time.Time { return time.Unix(0, clock.Load()).UTC() },
	}, st)
	require.NoError(t, err)

	v, err := validation.New(validation.DefaultRules(), nil)
	require.NoError(t, err)

	bus := events.NewBus(logging.Nop())
	rec := &recorder{}
	bus.Subscribe(rec)

	f := &fixture{
		store:    st,
		codec:    codec,
		sessions: sessions.NewTable(),
		mailer:   &fakeMailer{},
		events:   rec,
		hasher:   &cryptox.PasswordHasher{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32},
		clock:    clock,
	}
	f.svc = NewAuthService(Deps{
		Store:     st,
		Tokens:    codec,
		Validator: v,
		Sessions:  f.sessions,
		Events:    bus,
		Mailer:    f.mailer,
		Hasher:    f.hasher,
		Log:       logging.Nop(),
	}, settings)
	return f
}

func defaultSettings() Settings {
	return Settings{GuestLoginEnabled: true, GuestPrefix: "guest_"}
}

var peerSeq struct {
	sync.Mutex
	n int
}

// newPeer returns a connection that has completed the key handshake.
func newPeer(t *testing.T) *peer.Conn {
	t.Helper()
	peerSeq.Lock()
	peerSeq.n++
	n := peerSeq.n
	peerSeq.Unlock()

	p := peer.NewConn(fmt.Sprintf("peer-%d", n))
	p.SetKey(common.GenerateRandByteArray(32))
	return p
}

func seal(t *testing.T, p peer.Peer, props packet.Properties) []byte {
	t.Helper()
	data, err := cryptox.EncryptEntry(props, p.Key())
	require.NoError(t, err)
	return data
}

// createAccount stores a full account with the given password.
func (f *fixture) createAccount(t *testing.T, username, email, password string) *models.Account {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	a := f.store.CreateAccountInstance()
	a.Username = username
	a.Email = email
	a.PasswordHash = hash
	_, err = f.store.InsertAccount(context.Background(), a)
	require.NoError(t, err)
	return a
}

func (f *fixture) signIn(t *testing.T, p peer.Peer, props packet.Properties) (*packet.AccountInfo, error) {
	t.Helper()
	return f.svc.SignIn(context.Background(), p, seal(t, p, props))
}
