// Package sqlite file: internal/adapter/datasource/sqlite/cursor.go
package sqlite

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ja1902/presto-sqlite/internal/core/domain"
	"github.com/ja1902/presto-sqlite/internal/core/port"
	"github.com/ja1902/presto-sqlite/internal/observe"
	"github.com/spf13/cast"
)

// 断言 *Cursor 实现 port.RecordCursor 接口，编译期校验
var _ port.RecordCursor = (*Cursor)(nil)

// 各类型字段计入已读字节数时的固定宽度。
const (
	booleanWidth = 1
	longWidth    = 8
	doubleWidth  = 8
)

// 扫描结束的方式，同时用作指标标签。
const (
	outcomeExhausted = "exhausted"
	outcomeClosed    = "closed"
	outcomeReadError = "read_error"
)

// rowSource 是游标读取的结果集，*sql.Rows 即为其实现。
type rowSource interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Cursor 是单次、只进的行游标。
// 持有的三个句柄按 结果集 -> 语句 -> 连接 的顺序释放，释放只发生一次。
// 除 Close 外的方法只能在单个 goroutine 中调用；Close 可以与正在进行的 Advance 并发调用。
type Cursor struct {
	scanID  string
	table   string
	columns []domain.ColumnDescriptor

	rows rowSource
	stmt io.Closer
	conn io.Closer

	values  []any
	dest    []any
	hasRow  bool
	failed  atomic.Bool
	closed  atomic.Bool
	release sync.Once

	completedBytes atomic.Int64
	readNanos      atomic.Int64
	rowCount       atomic.Int64

	logger *slog.Logger
}

// newCursor 接管已经成功获取的三个句柄。scanWidth 是结果集的实际列数。
func newCursor(table string, columns []domain.ColumnDescriptor, scanWidth int, rows rowSource, stmt, conn io.Closer) *Cursor {
	scanID := uuid.NewString()
	c := &Cursor{
		scanID:  scanID,
		table:   table,
		columns: columns,
		rows:    rows,
		stmt:    stmt,
		conn:    conn,
		values:  make([]any, scanWidth),
		dest:    make([]any, scanWidth),
		logger:  slog.Default().With("component", "sqlite.cursor", "scan_id", scanID, "table", table),
	}
	for i := range c.values {
		c.dest[i] = &c.values[i]
	}
	return c
}

// ScanID 返回本次扫描的唯一标识，用于日志关联。
func (c *Cursor) ScanID() string {
	return c.scanID
}

// Advance 读取下一行。读到末尾时立即释放全部资源并返回 false。
// 读取失败返回 ErrRead，此后游标状态不确定，调用方仍需调用 Close。
func (c *Cursor) Advance() (bool, error) {
	if c.closed.Load() {
		return false, nil
	}

	start := time.Now()
	hasNext := c.rows.Next()
	var errScan error
	if hasNext {
		errScan = c.rows.Scan(c.dest...)
	}
	c.readNanos.Add(time.Since(start).Nanoseconds())

	if errScan != nil {
		c.hasRow = false
		if c.closed.Load() {
			return false, nil
		}
		c.failed.Store(true)
		return false, fmt.Errorf("%w: 读取表 '%s' 的行失败: %w", port.ErrRead, c.table, errScan)
	}
	if !hasNext {
		c.hasRow = false
		// 并发的 Close 已经释放了结果集
		if c.closed.Load() {
			return false, nil
		}
		if err := c.rows.Err(); err != nil {
			c.failed.Store(true)
			return false, fmt.Errorf("%w: 读取表 '%s' 的行失败: %w", port.ErrRead, c.table, err)
		}
		c.releaseAll(outcomeExhausted)
		return false, nil
	}

	c.hasRow = true
	c.rowCount.Add(1)
	return true, nil
}

// Type 返回第 field 个请求列的规范类型，下标越界时返回零值。
func (c *Cursor) Type(field int) domain.CanonicalType {
	if field < 0 || field >= len(c.columns) {
		return 0
	}
	return c.columns[field].Type
}

// Boolean 读取布尔值。整数按非零为真，文本按 strconv.ParseBool 的规则解析。
func (c *Cursor) Boolean(field int) (bool, error) {
	v, err := c.value(field)
	if err != nil {
		return false, err
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, c.convertError(field, "boolean", err)
	}
	c.completedBytes.Add(booleanWidth)
	return b, nil
}

// Long 读取 64 位整数。文本只接受十进制写法，"0x10" 之类的前缀形式视为读取错误。
func (c *Cursor) Long(field int) (int64, error) {
	v, err := c.value(field)
	if err != nil {
		return 0, err
	}
	var n int64
	switch t := v.(type) {
	case string:
		n, err = strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	case []byte:
		n, err = strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
	default:
		n, err = cast.ToInt64E(v)
	}
	if err != nil {
		return 0, c.convertError(field, "long", err)
	}
	c.completedBytes.Add(longWidth)
	return n, nil
}

// Double 读取双精度浮点数。
func (c *Cursor) Double(field int) (float64, error) {
	v, err := c.value(field)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, c.convertError(field, "double", err)
	}
	c.completedBytes.Add(doubleWidth)
	return f, nil
}

// Text 读取文本，按 UTF-8 编码后的长度计入已读字节数。NULL 读作空串且不计字节。
func (c *Cursor) Text(field int) (string, error) {
	v, err := c.value(field)
	if err != nil {
		return "", err
	}

	var s string
	switch tv := v.(type) {
	case nil:
		return "", nil
	case []byte:
		s = string(tv)
	case time.Time:
		s = formatStoreTime(tv)
	default:
		s, err = cast.ToStringE(v)
		if err != nil {
			return "", c.convertError(field, "text", err)
		}
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	c.completedBytes.Add(int64(len(s)))
	return s, nil
}

// IsNull 判断当前字段是否为 NULL，不影响已读字节数。
func (c *Cursor) IsNull(field int) (bool, error) {
	v, err := c.value(field)
	if err != nil {
		return false, err
	}
	return v == nil, nil
}

// Object 不受支持：桥接层只提供固定的几种基本类型。
func (c *Cursor) Object(field int) (any, error) {
	return nil, fmt.Errorf("%w: 字段 %d 不支持以对象形式读取", port.ErrUnsupported, field)
}

// CompletedBytes 返回估算的已读字节数，单调不减。
func (c *Cursor) CompletedBytes() int64 {
	return c.completedBytes.Load()
}

// ReadTimeNanos 返回花在从存储取行上的累计时间。
func (c *Cursor) ReadTimeNanos() int64 {
	return c.readNanos.Load()
}

// Close 释放全部资源，可重复调用，永远返回 nil。
func (c *Cursor) Close() error {
	outcome := outcomeClosed
	if c.failed.Load() {
		outcome = outcomeReadError
	}
	c.releaseAll(outcome)
	return nil
}

// releaseAll 严格按 结果集 -> 语句 -> 连接 的顺序释放，任何一步失败都不影响后续步骤。
func (c *Cursor) releaseAll(outcome string) {
	c.release.Do(func() {
		c.closed.Store(true)
		closeQuietly(c.rows, "rows")
		closeQuietly(c.stmt, "statement")
		closeQuietly(c.conn, "connection")

		rows := c.rowCount.Load()
		completed := c.completedBytes.Load()
		observe.ScansTotal.WithLabelValues(outcome).Inc()
		observe.ScanRows.Add(float64(rows))
		observe.ScanCompletedBytes.Add(float64(completed))
		c.logger.Debug("扫描结束，资源已释放",
			"outcome", outcome,
			"rows", rows,
			"completed_bytes", completed,
			"read_time", time.Duration(c.readNanos.Load()),
		)
	})
}

// value 返回当前行第 field 个字段的原始值。
func (c *Cursor) value(field int) (any, error) {
	if !c.hasRow || c.closed.Load() {
		return nil, fmt.Errorf("%w: 游标没有当前行 (字段 %d)", port.ErrRead, field)
	}
	if field < 0 || field >= len(c.columns) {
		return nil, fmt.Errorf("%w: 字段下标 %d 越界 (共 %d 列)", port.ErrRead, field, len(c.columns))
	}
	return c.values[field], nil
}

func (c *Cursor) convertError(field int, kind string, err error) error {
	return fmt.Errorf("%w: 列 '%s' 无法转换为 %s: %w", port.ErrRead, c.columns[field].Name, kind, err)
}

// formatStoreTime 把驱动解析出的时间还原为 SQLite 的文本格式。
func formatStoreTime(t time.Time) string {
	if t.Location() != time.UTC {
		return t.Format("2006-01-02 15:04:05.999999999-07:00")
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format("2006-01-02 15:04:05.999999999")
}
