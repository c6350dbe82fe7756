package handler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/config"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/domain"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/repository"
	"github.com/sysu-ecnc-dev/makerspace-booking/backend/internal/schedule"
)

// emptyDriver 的所有查询都不返回任何行，模拟查不到记录的数据库
type emptyDriver struct{}

func (emptyDriver) Open(string) (driver.Conn, error) { return emptyConn{}, nil }

type emptyConn struct{}

func (emptyConn) Prepare(string) (driver.Stmt, error) { return emptyStmt{}, nil }
func (emptyConn) Close() error                        { return nil }
func (emptyConn) Begin() (driver.Tx, error)           { return emptyTx{}, nil }

type emptyTx struct{}

func (emptyTx) Commit() error   { return nil }
func (emptyTx) Rollback() error { return nil }

type emptyStmt struct{}

func (emptyStmt) Close() error                               { return nil }
func (emptyStmt) NumInput() int                              { return -1 }
func (emptyStmt) Exec([]driver.Value) (driver.Result, error) { return driver.RowsAffected(0), nil }
func (emptyStmt) Query([]driver.Value) (driver.Rows, error)  { return &emptyRows{}, nil }

type emptyRows struct{}

func (*emptyRows) Columns() []string         { return []string{} }
func (*emptyRows) Close() error              { return nil }
func (*emptyRows) Next([]driver.Value) error { return io.EOF }

func init() {
	sql.Register("handler_empty", emptyDriver{})
}

// 可用时段查询对不存在的设备也必须成功并返回空列表，而不是报错
func TestGetAvailableSlotsMissingMachine(t *testing.T) {
	db, err := sql.Open("handler_empty", "")
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	defer db.Close()

	cfg := &config.Config{}
	cfg.Database.QueryTimeout = 5
	cfg.Booking.MaxWindowDays = 60

	h := &Handler{
		config:     cfg,
		repository: repository.NewRepository(cfg, db),
		locations:  schedule.NewLocationCache(),
	}

	tests := []struct {
		name string
		id   string
	}{
		{name: "设备不存在", id: "424242"},
		{name: "设备ID不是数字", id: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/machines/"+tt.id+"/available-slots", nil)

			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, MyInfoCtx, &domain.User{ID: 7, Role: domain.RoleMember})

			rec := httptest.NewRecorder()
			h.GetAvailableSlots(rec, req.WithContext(ctx))

			if rec.Code != http.StatusOK {
				t.Fatalf("状态码 = %d, 希望 %d", rec.Code, http.StatusOK)
			}

			var resp struct {
				Success bool            `json:"success"`
				Data    []schedule.Slot `json:"data"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("解析响应失败: %v", err)
			}
			if !resp.Success {
				t.Errorf("success = false, 希望查询成功")
			}
			if resp.Data == nil {
				t.Errorf("data = null, 希望空列表")
			}
			if len(resp.Data) != 0 {
				t.Errorf("返回了 %d 个时段, 希望空列表", len(resp.Data))
			}
		})
	}
}
