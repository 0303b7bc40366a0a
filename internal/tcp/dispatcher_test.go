package tcp

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"msghub/internal/model"
	"msghub/internal/protocol"
	"msghub/internal/storage"
)

// MockStore is a testify mock over the persistence interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) UserExists(username string) (bool, error) {
	args := m.Called(username)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetUser(username string) (*model.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockStore) GetUserByID(id uint) (*model.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockStore) InsertUser(u *model.User, password string) error {
	args := m.Called(u, password)
	return args.Error(0)
}

func (m *MockStore) UpdateUser(oldUsername string, u *model.User, password string) error {
	args := m.Called(oldUsername, u, password)
	return args.Error(0)
}

func (m *MockStore) RemoveUser(username string) error {
	args := m.Called(username)
	return args.Error(0)
}

func (m *MockStore) Authenticate(username, password string) (bool, error) {
	args := m.Called(username, password)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) InsertMessage(msg *model.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStore) InboxOf(username string) ([]model.Message, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockStore) OutboxOf(username string) ([]model.Message, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockStore) ListUsers() ([]model.User, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

type dispatcherFixture struct {
	store    *MockStore
	registry *Registry
	evictor  *Evictor
	d        *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	store := &MockStore{}
	registry := NewRegistry()
	evictor := NewEvictor(registry, time.Millisecond, testLogger())
	return &dispatcherFixture{
		store:    store,
		registry: registry,
		evictor:  evictor,
		d:        NewDispatcher(store, registry, evictor, testLogger()),
	}
}

func (f *dispatcherFixture) conn(t *testing.T) *ClientConnection {
	t.Helper()
	c, _ := newPipeConnection(t, f.registry)
	return c
}

func request(action string, fields map[string]string) protocol.Request {
	return protocol.Request{Action: action, Content: protocol.EncodeContent(fields)}
}

func TestDispatchUnknownAction(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)

	resp := f.d.Dispatch(c, protocol.Request{Action: "SELF_DESTRUCT"})
	assert.Equal(t, protocol.StatusError, resp.Status)
}

func TestDispatchLoginUnknownUser(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)
	f.store.On("UserExists", "ghost").Return(false, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionLogin, map[string]string{
		"username": "ghost", "password": "pw",
	}))
	assert.Equal(t, protocol.StatusNotFound, resp.Status)
	assert.Nil(t, c.User())
}

func TestDispatchLoginWrongPassword(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)
	f.store.On("UserExists", "alice").Return(true, nil)
	f.store.On("Authenticate", "alice", "wrong").Return(false, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionLogin, map[string]string{
		"username": "alice", "password": "wrong",
	}))
	assert.Equal(t, protocol.StatusLoginFailed, resp.Status)
}

func TestDispatchLoginSuccess(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)
	alice := &model.User{Username: "alice", Name: "Alice", Email: "alice@example.com"}
	f.store.On("UserExists", "alice").Return(true, nil)
	f.store.On("Authenticate", "alice", "pw").Return(true, nil)
	f.store.On("GetUser", "alice").Return(alice, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionLogin, map[string]string{
		"username": "alice", "password": "pw",
	}))
	require.Equal(t, protocol.StatusSuccess, resp.Status)

	decoded := protocol.DecodeUser(resp.Content)
	assert.Equal(t, *alice, decoded)
	assert.NotContains(t, resp.Content, "pw", "password never travels back")

	require.NotNil(t, c.User())
	assert.Equal(t, "alice", c.User().Username)
	_, ok := f.registry.Lookup("alice")
	assert.True(t, ok)
}

func TestDispatchLoginEmptyCredentials(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)

	resp := f.d.Dispatch(c, request(protocol.ActionLogin, map[string]string{
		"username": "", "password": "",
	}))
	assert.Equal(t, protocol.StatusInvalidFields, resp.Status)
}

func TestDispatchLogout(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)

	resp := f.d.Dispatch(c, request(protocol.ActionLogout, nil))
	assert.Equal(t, protocol.StatusLogoutFailed, resp.Status, "logout without login fails")

	c.Bind(&model.User{Username: "alice"})
	resp = f.d.Dispatch(c, request(protocol.ActionLogout, nil))
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Nil(t, c.User())
	_, ok := f.registry.Lookup("alice")
	assert.False(t, ok)
}

func TestDispatchInboxRequiresLogin(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)

	resp := f.d.Dispatch(c, request(protocol.ActionInbox, nil))
	assert.Equal(t, protocol.StatusError, resp.Status)
}

func TestDispatchInboxReturnsMessages(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)
	c.Bind(&model.User{Username: "alice"})

	messages := []model.Message{
		{
			Sender:   model.User{Username: "bob"},
			Receiver: model.User{Username: "alice"},
			Title:    "hi",
			Content:  "hello",
			Time:     "2026-03-01 09:00:00",
		},
	}
	f.store.On("InboxOf", "alice").Return(messages, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionInbox, nil))
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	decoded := protocol.DecodeMessageList(resp.Content)
	require.Len(t, decoded, 1)
	assert.Equal(t, "bob", decoded[0].Sender.Username)
}

func TestDispatchOutboxReturnsMessages(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)
	c.Bind(&model.User{Username: "alice"})
	f.store.On("OutboxOf", "alice").Return([]model.Message{}, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionOutbox, nil))
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Empty(t, resp.Content, "empty outbox serializes to the empty string")
}

func TestDispatchSendMessageEmptyTitleAndContent(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)

	resp := f.d.Dispatch(c, request(protocol.ActionSendMessage, map[string]string{
		"sender": "alice", "receiver": "bob", "title": "", "content": "",
		"time": "2026-03-01 09:00:00",
	}))
	assert.Equal(t, protocol.StatusInvalidFields, resp.Status)
}

func TestDispatchSendMessageReservedToken(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)

	resp := f.d.Dispatch(c, request(protocol.ActionSendMessage, map[string]string{
		"sender": "alice", "receiver": "bob",
		"title": "smuggling __KV__ inside", "content": "x",
		"time": "2026-03-01 09:00:00",
	}))
	assert.Equal(t, protocol.StatusInvalidFields, resp.Status)
}

func TestDispatchSendMessageOverridesSenderWithBoundUser(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)
	alice := &model.User{Username: "alice"}
	bob := &model.User{Username: "bob"}
	c.Bind(alice)

	f.store.On("UserExists", "alice").Return(true, nil)
	f.store.On("UserExists", "bob").Return(true, nil)
	f.store.On("GetUser", "alice").Return(alice, nil)
	f.store.On("GetUser", "bob").Return(bob, nil)
	f.store.On("InsertMessage", mock.MatchedBy(func(m *model.Message) bool {
		return m.Sender.Username == "alice" && m.Receiver.Username == "bob"
	})).Return(nil)

	// Payload claims someone else sent it; the bound user wins.
	resp := f.d.Dispatch(c, request(protocol.ActionSendMessage, map[string]string{
		"sender": "mallory", "receiver": "bob",
		"title": "hi", "content": "hello",
		"time": "2026-03-01 09:00:00",
	}))
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	f.store.AssertExpectations(t)
}

func TestDispatchSendMessageUnknownReceiver(t *testing.T) {
	f := newDispatcherFixture(t)
	c := f.conn(t)

	f.store.On("UserExists", "alice").Return(true, nil)
	f.store.On("UserExists", "ghost").Return(false, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionSendMessage, map[string]string{
		"sender": "alice", "receiver": "ghost",
		"title": "hi", "content": "hello",
		"time": "2026-03-01 09:00:00",
	}))
	assert.Equal(t, protocol.StatusNotFound, resp.Status)
}

func TestDispatchAdminActionsRequireAdmin(t *testing.T) {
	f := newDispatcherFixture(t)

	requests := []protocol.Request{
		request(protocol.ActionAddUser, map[string]string{"username": "x", "password": "pw"}),
		request(protocol.ActionUpdateUser, map[string]string{"username": "x"}),
		request(protocol.ActionRemoveUser, map[string]string{"username": "x"}),
		request(protocol.ActionListUsers, nil),
	}

	for _, req := range requests {
		unbound := f.conn(t)
		resp := f.d.Dispatch(unbound, req)
		assert.Equal(t, protocol.StatusUnauthorized, resp.Status, "%s unbound", req.Action)

		regular := f.conn(t)
		regular.Bind(&model.User{Username: "alice", IsAdmin: false})
		resp = f.d.Dispatch(regular, req)
		assert.Equal(t, protocol.StatusUnauthorized, resp.Status, "%s non-admin", req.Action)
	}
}

func adminConn(t *testing.T, f *dispatcherFixture) *ClientConnection {
	t.Helper()
	c := f.conn(t)
	c.Bind(&model.User{Username: storage.AdminUsername, IsAdmin: true})
	return c
}

func TestDispatchAddUserConflict(t *testing.T) {
	f := newDispatcherFixture(t)
	c := adminConn(t, f)
	f.store.On("UserExists", "alice").Return(true, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionAddUser, map[string]string{
		"username": "alice", "password": "pw",
	}))
	assert.Equal(t, protocol.StatusUsernameTaken, resp.Status)
}

func TestDispatchAddUserSuccess(t *testing.T) {
	f := newDispatcherFixture(t)
	c := adminConn(t, f)
	f.store.On("UserExists", "carol").Return(false, nil)
	f.store.On("InsertUser", mock.MatchedBy(func(u *model.User) bool {
		return u.Username == "carol" && u.IsAdmin
	}), "pw").Return(nil)

	resp := f.d.Dispatch(c, request(protocol.ActionAddUser, map[string]string{
		"username": "carol", "password": "pw",
		"name": "Carol", "isAdmin": "true",
	}))
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	f.store.AssertExpectations(t)
}

func TestDispatchUpdateUserNotFound(t *testing.T) {
	f := newDispatcherFixture(t)
	c := adminConn(t, f)
	f.store.On("UserExists", "ghost").Return(false, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionUpdateUser, map[string]string{
		"username": "ghost",
	}))
	assert.Equal(t, protocol.StatusNotFound, resp.Status)
}

func TestDispatchUpdateUserRenameConflict(t *testing.T) {
	f := newDispatcherFixture(t)
	c := adminConn(t, f)
	f.store.On("UserExists", "alice").Return(true, nil)
	f.store.On("UserExists", "bob").Return(true, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionUpdateUser, map[string]string{
		"username": "alice", "newUsername": "bob",
	}))
	assert.Equal(t, protocol.StatusUsernameTaken, resp.Status)
}

func TestDispatchUpdateUserSuccess(t *testing.T) {
	f := newDispatcherFixture(t)
	c := adminConn(t, f)
	f.store.On("UserExists", "alice").Return(true, nil)
	f.store.On("UserExists", "alicia").Return(false, nil)
	f.store.On("UpdateUser", "alice", mock.MatchedBy(func(u *model.User) bool {
		return u.Username == "alicia" && u.Location == "Milan"
	}), "newpw").Return(nil)

	resp := f.d.Dispatch(c, request(protocol.ActionUpdateUser, map[string]string{
		"username": "alice", "newUsername": "alicia",
		"location": "Milan", "password": "newpw",
	}))
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	f.store.AssertExpectations(t)
}

func TestDispatchRemoveUserNotFoundSkipsEviction(t *testing.T) {
	f := newDispatcherFixture(t)
	c := adminConn(t, f)
	f.store.On("UserExists", "ghost").Return(false, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionRemoveUser, map[string]string{
		"username": "ghost",
	}))
	assert.Equal(t, protocol.StatusNotFound, resp.Status)
	f.store.AssertNotCalled(t, "RemoveUser", "ghost")
}

func TestDispatchRemoveUserEvictsLiveSession(t *testing.T) {
	f := newDispatcherFixture(t)
	admin := adminConn(t, f)

	victim, victimPeer := newPipeConnection(t, f.registry)
	victim.Bind(&model.User{Username: "bob"})

	f.store.On("UserExists", "bob").Return(true, nil)
	f.store.On("RemoveUser", "bob").Return(nil)

	resp := f.d.Dispatch(admin, request(protocol.ActionRemoveUser, map[string]string{
		"username": "bob",
	}))
	assert.Equal(t, protocol.StatusSuccess, resp.Status)

	// The evicted session receives the account-removed notice, then sees
	// its connection closed.
	reader := bufio.NewReader(victimPeer)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	notice, err := protocol.DecodeResponse(line[:len(line)-1])
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusAccountRemoved, notice.Status)

	f.evictor.Wait()
	_, err = reader.ReadString('\n')
	assert.Error(t, err)
	_, ok := f.registry.Lookup("bob")
	assert.False(t, ok)
}

func TestDispatchListUsers(t *testing.T) {
	f := newDispatcherFixture(t)
	c := adminConn(t, f)
	users := []model.User{
		{Username: "alice"},
		{Username: "bob"},
	}
	f.store.On("ListUsers").Return(users, nil)

	resp := f.d.Dispatch(c, request(protocol.ActionListUsers, nil))
	require.Equal(t, protocol.StatusSuccess, resp.Status)
	decoded := protocol.DecodeUserList(resp.Content)
	require.Len(t, decoded, 2)
	assert.Equal(t, "alice", decoded[0].Username)
}

func TestDispatchStorageFailureDowngradesToError(t *testing.T) {
	f := newDispatcherFixture(t)
	c := adminConn(t, f)
	f.store.On("ListUsers").Return(nil, assert.AnError)

	resp := f.d.Dispatch(c, request(protocol.ActionListUsers, nil))
	assert.Equal(t, protocol.StatusError, resp.Status)
}

// serveFixture runs the full Serve loop over an in-memory pipe and returns
// the peer's line-oriented reader/writer.
func serveFixture(t *testing.T, f *dispatcherFixture) (net.Conn, *bufio.Reader) {
	t.Helper()
	server, peer := net.Pipe()
	c := NewClientConnection(server, f.registry, testLogger())
	done := make(chan struct{})
	go func() {
		f.d.Serve(c)
		close(done)
	}()
	t.Cleanup(func() {
		peer.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("serve loop did not stop")
		}
	})
	return peer, bufio.NewReader(peer)
}

func TestServeAnswersRequestsInOrder(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.On("UserExists", "ghost").Return(false, nil)
	peer, reader := serveFixture(t, f)

	line := protocol.EncodeRequest(request(protocol.ActionLogin, map[string]string{
		"username": "ghost", "password": "pw",
	}))
	_, err := peer.Write([]byte(line + "\n"))
	require.NoError(t, err)

	raw, err := reader.ReadString('\n')
	require.NoError(t, err)
	resp, err := protocol.DecodeResponse(raw[:len(raw)-1])
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusNotFound, resp.Status)
}

func TestServeTerminatesOnUndecodableLine(t *testing.T) {
	f := newDispatcherFixture(t)
	peer, reader := serveFixture(t, f)

	_, err := peer.Write([]byte("not a request at all\n"))
	require.NoError(t, err)

	// No response; the connection is closed instead.
	_, err = reader.ReadString('\n')
	assert.Error(t, err)
}
