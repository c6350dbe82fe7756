package repository

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
)

// 预约提交使用 postgres 的事务级咨询锁对管理员、设备、会员三个身份串行化，
// 锁的作用范围只有这三个实体，互不相关的预约可以并发提交。
// 锁在事务提交或回滚时自动释放。

func advisoryLockKey(kind string, id int64) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", kind, id)
	return int64(h.Sum64())
}

// acquireEntityLocks 按调用方给出的顺序依次获取咨询锁。
// 所有写路径必须以 管理员 -> 设备 -> 会员 的固定全局顺序传入，
// 否则引用相同实体的两个事务可能互相持锁等待造成死锁。
func acquireEntityLocks(ctx context.Context, tx *sql.Tx, keys ...int64) error {
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
			return err
		}
	}
	return nil
}
