package gamification

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookrecorder/internal/logger"
)

// fakeStore is an in-memory Store. RunInTx serializes transactions and only
// publishes a transaction's writes when fn returns nil.
type fakeStore struct {
	mu    sync.Mutex
	state fakeState

	metricErr      map[Metric]error
	setProgressErr error
	metricCalls    map[Metric]int
	achievements   []Achievement
}

type fakeState struct {
	users   map[int64]Progress
	grants  map[int64]map[int64]bool
	metrics map[int64]*ActivityMetrics
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: fakeState{
			users:   make(map[int64]Progress),
			grants:  make(map[int64]map[int64]bool),
			metrics: make(map[int64]*ActivityMetrics),
		},
		metricErr:   make(map[Metric]error),
		metricCalls: make(map[Metric]int),
	}
}

func (s fakeState) clone() fakeState {
	c := fakeState{
		users:   make(map[int64]Progress, len(s.users)),
		grants:  make(map[int64]map[int64]bool, len(s.grants)),
		metrics: s.metrics,
	}
	for id, p := range s.users {
		c.users[id] = p
	}
	for id, g := range s.grants {
		cg := make(map[int64]bool, len(g))
		for a := range g {
			cg[a] = true
		}
		c.grants[id] = cg
	}
	return c
}

func (s *fakeStore) addUser(id, experience int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[id] = Progress{UserID: id, Experience: experience, Level: LevelFor(experience)}
	s.state.metrics[id] = &ActivityMetrics{}
}

func (s *fakeStore) setMetric(id int64, m Metric, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.metrics[id].Set(m, v)
}

func (s *fakeStore) progress(id int64) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.users[id]
}

func (s *fakeStore) grantCount(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.grants[id])
}

func (s *fakeStore) hasGrant(userID, achievementID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.grants[userID][achievementID]
}

func (s *fakeStore) GetUser(ctx context.Context, userID int64) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getUser(s.state, userID)
}

func (s *fakeStore) CountMetric(ctx context.Context, userID int64, m Metric, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countMetric(s.state, userID, m)
}

func (s *fakeStore) GrantedAchievementIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return grantedIDs(s.state, userID), nil
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &fakeTx{store: s, state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *fakeStore) countMetric(st fakeState, userID int64, m Metric) (int64, error) {
	s.metricCalls[m]++
	if err := s.metricErr[m]; err != nil {
		return 0, err
	}
	am, ok := st.metrics[userID]
	if !ok {
		return 0, nil
	}
	return am.Value(m), nil
}

func (s *fakeStore) InsertAchievementIfAbsent(ctx context.Context, def Definition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.achievements {
		if a.Name == def.Name || a.Code == def.Code {
			return false, nil
		}
	}
	s.achievements = append(s.achievements, Achievement{
		ID:          int64(len(s.achievements) + 1),
		Code:        def.Code,
		Name:        def.Name,
		Description: def.Description,
		Image:       def.Image,
		Kind:        def.Kind,
		Threshold:   def.Threshold,
	})
	return true, nil
}

func (s *fakeStore) ListAchievements(ctx context.Context) ([]Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Achievement, len(s.achievements))
	copy(out, s.achievements)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeTx struct {
	store *fakeStore
	state fakeState
}

func (t *fakeTx) GetUser(ctx context.Context, userID int64) (Progress, error) {
	return getUser(t.state, userID)
}

func (t *fakeTx) CountMetric(ctx context.Context, userID int64, m Metric, now time.Time) (int64, error) {
	return t.store.countMetric(t.state, userID, m)
}

func (t *fakeTx) GrantedAchievementIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	return grantedIDs(t.state, userID), nil
}

func (t *fakeTx) LockUser(ctx context.Context, userID int64) (Progress, error) {
	return getUser(t.state, userID)
}

func (t *fakeTx) SetUserProgress(ctx context.Context, userID, experience int64, level int) error {
	if t.store.setProgressErr != nil {
		return t.store.setProgressErr
	}
	if _, ok := t.state.users[userID]; !ok {
		return ErrUserNotFound
	}
	t.state.users[userID] = Progress{UserID: userID, Experience: experience, Level: level}
	return nil
}

func (t *fakeTx) RecordGrant(ctx context.Context, userID, achievementID int64) error {
	g, ok := t.state.grants[userID]
	if !ok {
		g = make(map[int64]bool)
		t.state.grants[userID] = g
	}
	if g[achievementID] {
		return ErrAlreadyGranted
	}
	g[achievementID] = true
	return nil
}

func getUser(st fakeState, userID int64) (Progress, error) {
	p, ok := st.users[userID]
	if !ok {
		return Progress{}, ErrUserNotFound
	}
	return p, nil
}

func grantedIDs(st fakeState, userID int64) map[int64]bool {
	out := make(map[int64]bool)
	for id := range st.grants[userID] {
		out[id] = true
	}
	return out
}

// catalogFor assigns ids in definition order, as a fresh seed would.
func catalogFor(defs ...Definition) *Catalog {
	rows := make([]Achievement, 0, len(defs))
	for i, d := range defs {
		rows = append(rows, Achievement{
			ID:          int64(i + 1),
			Code:        d.Code,
			Name:        d.Name,
			Description: d.Description,
			Image:       d.Image,
			Kind:        d.Kind,
			Threshold:   d.Threshold,
		})
	}
	return NewCatalog(rows, defs, logger.Nop())
}

func definition(code string) Definition {
	for _, d := range Definitions {
		if d.Code == code {
			return d
		}
	}
	panic("no definition " + code)
}
