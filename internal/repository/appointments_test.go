package repository

import (
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/config"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
)

// scriptDB 按预先排好的顺序逐个返回查询结果，并记录每条执行过的语句，
// 用来在没有真实数据库的情况下检查事务内的语句和参数
type scriptDB struct {
	mu      sync.Mutex
	results []scriptResult
	calls   []scriptCall
}

type scriptCall struct {
	query string
	args  []driver.Value
}

type scriptResult struct {
	columns []string
	rows    [][]driver.Value
}

func (s *scriptDB) record(query string, args []driver.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, scriptCall{query: query, args: args})
}

func (s *scriptDB) next() scriptResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return scriptResult{columns: []string{}}
	}
	res := s.results[0]
	s.results = s.results[1:]
	return res
}

type scriptDriver struct{ db *scriptDB }

func (d scriptDriver) Open(string) (driver.Conn, error) { return scriptConn{db: d.db}, nil }

type scriptConn struct{ db *scriptDB }

func (c scriptConn) Prepare(query string) (driver.Stmt, error) {
	return scriptStmt{db: c.db, query: query}, nil
}
func (c scriptConn) Close() error              { return nil }
func (c scriptConn) Begin() (driver.Tx, error) { return scriptTx{}, nil }

type scriptTx struct{}

func (scriptTx) Commit() error   { return nil }
func (scriptTx) Rollback() error { return nil }

type scriptStmt struct {
	db    *scriptDB
	query string
}

func (s scriptStmt) Close() error  { return nil }
func (s scriptStmt) NumInput() int { return -1 }

func (s scriptStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.db.record(s.query, args)
	return driver.RowsAffected(1), nil
}

func (s scriptStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.db.record(s.query, args)
	return &scriptRows{res: s.db.next()}, nil
}

type scriptRows struct {
	res scriptResult
	pos int
}

func (r *scriptRows) Columns() []string { return r.res.columns }
func (r *scriptRows) Close() error      { return nil }

func (r *scriptRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.res.rows) {
		return io.EOF
	}
	copy(dest, r.res.rows[r.pos])
	r.pos++
	return nil
}

var cancelScript = &scriptDB{}

func init() {
	sql.Register("repository_script", scriptDriver{db: cancelScript})
}

// 取消预约的审计事件必须记录事务内 FOR UPDATE 重读到的状态，
// 而不是 handler 在事务外加载的快照：两者之间预约可能已被审核通过
func TestCancelAppointmentEventUsesLockedStatus(t *testing.T) {
	cancelScript.calls = nil
	cancelScript.results = []scriptResult{
		// FOR UPDATE 重读：快照加载后预约已被通过
		{columns: []string{"status"}, rows: [][]driver.Value{{"accepted"}}},
		// UPDATE ... RETURNING version
		{columns: []string{"version"}, rows: [][]driver.Value{{int64(4)}}},
		// INSERT 审计事件 ... RETURNING id, created_at
		{columns: []string{"id", "created_at"}, rows: [][]driver.Value{{int64(9), time.Now()}}},
	}

	db, err := sql.Open("repository_script", "")
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	defer db.Close()

	cfg := &config.Config{}
	cfg.Database.TransactionTimeout = 5

	repo := NewRepository(cfg, db)

	app := &domain.Appointment{
		ID:        1,
		UserID:    2,
		MachineID: 3,
		ManagerID: 4,
		StartTime: time.Now().Add(24 * time.Hour),
		Status:    domain.AppointmentStatusPending, // 过期的快照
	}

	if err := repo.CancelAppointment(app, 2, domain.RoleMember, "临时有事"); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}

	var eventArgs []driver.Value
	for _, call := range cancelScript.calls {
		if strings.Contains(call.query, "INSERT INTO appointment_events") {
			eventArgs = call.args
		}
	}
	if eventArgs == nil {
		t.Fatal("没有写入审计事件")
	}

	// 参数顺序: appointment_id, event_type, actor_id, actor_role, from_status, to_status, metadata
	if got := eventArgs[4]; got != "accepted" {
		t.Errorf("from_status = %v, 希望事务内重读到的 accepted", got)
	}
	if got := eventArgs[5]; got != "cancelled" {
		t.Errorf("to_status = %v, 希望 cancelled", got)
	}
	if app.Version != 4 {
		t.Errorf("version = %d, 希望 4", app.Version)
	}
}
