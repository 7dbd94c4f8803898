package bot

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/hitoshi/warnman/internal/model"
)

// DefaultPaginatorTTL は最後の操作から検索結果のページ送りを受け付ける時間。
const DefaultPaginatorTTL = 5 * time.Minute

// maxPaginatorAge は操作の有無にかかわらずセッションを打ち切るまでの時間。
// インタラクションのトークンは15分で失効するため、掃除の間隔を見込んでそれより前に期限切れにする。
const maxPaginatorAge = 13 * time.Minute

// paginatorSweepInterval は期限切れセッションを掃除する間隔。
const paginatorSweepInterval = time.Minute

// コンポーネントのカスタムID
const (
	componentPrefix = "warnpage"
	actionPrev      = "prev"
	actionNext      = "next"
	actionSelect    = "select"
)

// componentID はセッションと操作からカスタムIDを組み立てる。
func componentID(sessionID, action string) string {
	return componentPrefix + ":" + sessionID + ":" + action
}

// parseComponentID はカスタムIDをセッションIDと操作に分解する。
func parseComponentID(customID string) (sessionID, action string, ok bool) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 || parts[0] != componentPrefix || parts[1] == "" {
		return "", "", false
	}
	switch parts[2] {
	case actionPrev, actionNext, actionSelect:
		return parts[1], parts[2], true
	}
	return "", "", false
}

// paginatorSession は1回の検索結果のページ送り状態。
type paginatorSession struct {
	id          string
	ownerID     string
	records     []*model.WarnRecord
	page        int
	interaction *discordgo.Interaction
	createdAt   time.Time
	lastActive  time.Time
}

// paginatorStore はページ送りセッションを保持し、期限切れを掃除する。
type paginatorStore struct {
	ttl      time.Duration
	maxAge   time.Duration
	now      func() time.Time
	onExpire func(s *paginatorSession)

	mu       sync.Mutex
	sessions map[string]*paginatorSession

	stopOnce sync.Once
	stopCh   chan struct{}
}

// newPaginatorStore はpaginatorStoreを生成する。onExpireは期限切れセッションごとに呼ばれる。
func newPaginatorStore(ttl time.Duration, onExpire func(s *paginatorSession)) *paginatorStore {
	return &paginatorStore{
		ttl:      ttl,
		maxAge:   maxPaginatorAge,
		now:      time.Now,
		onExpire: onExpire,
		sessions: make(map[string]*paginatorSession),
		stopCh:   make(chan struct{}),
	}
}

// create は新しいセッションを登録して返す。
func (p *paginatorStore) create(ownerID string, records []*model.WarnRecord, interaction *discordgo.Interaction) *paginatorSession {
	now := p.now()
	s := &paginatorSession{
		id:          uuid.NewString(),
		ownerID:     ownerID,
		records:     records,
		interaction: interaction,
		createdAt:   now,
		lastActive:  now,
	}

	p.mu.Lock()
	p.sessions[s.id] = s
	p.mu.Unlock()

	return s
}

// moveResult はページ操作の判定結果。
type moveResult int

const (
	moveOK moveResult = iota
	moveExpired
	moveForbidden
	moveInvalid
)

// move はセッションのページを操作に応じて移動し、表示すべきページを返す。
// 操作者が検索した本人でなければmoveForbiddenを返す。
func (p *paginatorStore) move(sessionID, userID, action string, values []string) (*paginatorSession, int, moveResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[sessionID]
	if !ok || p.expired(s, p.now()) {
		return nil, 0, moveExpired
	}
	if s.ownerID != userID {
		return nil, 0, moveForbidden
	}

	last := len(s.records) - 1
	switch action {
	case actionPrev:
		if s.page > 0 {
			s.page--
		}
	case actionNext:
		if s.page < last {
			s.page++
		}
	case actionSelect:
		if len(values) != 1 {
			return nil, 0, moveInvalid
		}
		n, ok := parsePage(values[0], len(s.records))
		if !ok {
			return nil, 0, moveInvalid
		}
		s.page = n
	default:
		return nil, 0, moveInvalid
	}

	s.lastActive = p.now()
	return s, s.page, moveOK
}

// expired は最後の操作からttl、または作成からmaxAgeを過ぎたかを返す。
func (p *paginatorStore) expired(s *paginatorSession, now time.Time) bool {
	return now.Sub(s.lastActive) > p.ttl || now.Sub(s.createdAt) > p.maxAge
}

// len は保持しているセッション数を返す。
func (p *paginatorStore) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// sweep は期限切れのセッションを取り除き、onExpireを呼ぶ。
func (p *paginatorStore) sweep() {
	now := p.now()

	var expired []*paginatorSession
	p.mu.Lock()
	for id, s := range p.sessions {
		if p.expired(s, now) {
			expired = append(expired, s)
			delete(p.sessions, id)
		}
	}
	p.mu.Unlock()

	if p.onExpire == nil {
		return
	}
	for _, s := range expired {
		p.onExpire(s)
	}
}

// run はintervalごとにsweepを実行する。stopが呼ばれるまで戻らない。
func (p *paginatorStore) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.stopCh:
			return
		}
	}
}

// stop はrunを終了させる。
func (p *paginatorStore) stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// parsePage は選択メニューの値をページ番号に変換する。
func parsePage(value string, total int) (int, bool) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n >= total {
		return 0, false
	}
	return n, true
}
