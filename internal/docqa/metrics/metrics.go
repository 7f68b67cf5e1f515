// Package metrics 提供文档问答服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DocQAMetrics 文档问答业务指标。
type DocQAMetrics struct {
	// 查询指标
	queriesTotal    uint64
	queriesDocument uint64 // 文档模式回答次数
	queriesGeneral  uint64 // 通用模式回答次数
	queriesFailed   uint64 // 以道歉文本结束的查询次数

	// 检索指标
	retrievalTotal    uint64
	retrievalErrors   uint64
	retrievalDuration float64 // 秒
	chunksRetained    uint64  // 阈值过滤后保留的分块总数

	// 生成指标
	generationTotal    uint64
	generationErrors   uint64
	generationTimeouts uint64
	generationDuration float64 // 秒

	// 索引指标
	indexBuilds      uint64
	indexLoads       uint64 // 从持久化产物加载次数
	indexErrors      uint64
	documentsIndexed int64 // gauge
	chunksIndexed    int64 // gauge

	// 会话指标
	sessionsCreated  uint64
	sessionsArchived uint64
	sessionDegraded  int32 // 1 表示已降级为进程内存储

	durationMu sync.Mutex
	startTime  time.Time
}

var (
	global     *DocQAMetrics
	globalOnce sync.Once
)

// New 创建独立的指标实例。
func New() *DocQAMetrics {
	return &DocQAMetrics{startTime: time.Now()}
}

// Default 返回全局指标实例。
func Default() *DocQAMetrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// RecordQuery 记录一次查询的结果模式。mode 为 "document"、"general" 或 "error"。
func (m *DocQAMetrics) RecordQuery(mode string) {
	atomic.AddUint64(&m.queriesTotal, 1)
	switch mode {
	case "document":
		atomic.AddUint64(&m.queriesDocument, 1)
	case "general":
		atomic.AddUint64(&m.queriesGeneral, 1)
	default:
		atomic.AddUint64(&m.queriesFailed, 1)
	}
}

// RecordRetrieval 记录检索操作及阈值过滤后保留的分块数。
func (m *DocQAMetrics) RecordRetrieval(duration time.Duration, retained int, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}
	atomic.AddUint64(&m.chunksRetained, uint64(retained))

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordGeneration 记录生成后端调用。
func (m *DocQAMetrics) RecordGeneration(duration time.Duration, timedOut bool, err error) {
	atomic.AddUint64(&m.generationTotal, 1)
	if timedOut {
		atomic.AddUint64(&m.generationTimeouts, 1)
	}
	if err != nil {
		atomic.AddUint64(&m.generationErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.generationDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordIndexing 记录一次索引构建或加载，成功时更新文档与分块数量。
func (m *DocQAMetrics) RecordIndexing(documents, chunks int, loaded bool, err error) {
	if err != nil {
		atomic.AddUint64(&m.indexErrors, 1)
		return
	}
	if loaded {
		atomic.AddUint64(&m.indexLoads, 1)
	} else {
		atomic.AddUint64(&m.indexBuilds, 1)
	}
	atomic.StoreInt64(&m.documentsIndexed, int64(documents))
	atomic.StoreInt64(&m.chunksIndexed, int64(chunks))
}

// RecordSessionCreated 记录新建会话。
func (m *DocQAMetrics) RecordSessionCreated() {
	atomic.AddUint64(&m.sessionsCreated, 1)
}

// RecordSessionArchived 记录会话归档。
func (m *DocQAMetrics) RecordSessionArchived() {
	atomic.AddUint64(&m.sessionsArchived, 1)
}

// SetSessionDegraded 设置会话存储降级状态。
func (m *DocQAMetrics) SetSessionDegraded(degraded bool) {
	var v int32
	if degraded {
		v = 1
	}
	atomic.StoreInt32(&m.sessionDegraded, v)
}

// Snapshot 指标快照。
type Snapshot struct {
	QueriesTotal       uint64  `json:"queries_total"`
	QueriesDocument    uint64  `json:"queries_document"`
	QueriesGeneral     uint64  `json:"queries_general"`
	QueriesFailed      uint64  `json:"queries_failed"`
	RetrievalTotal     uint64  `json:"retrieval_total"`
	RetrievalErrors    uint64  `json:"retrieval_errors"`
	ChunksRetained     uint64  `json:"chunks_retained"`
	GenerationTotal    uint64  `json:"generation_total"`
	GenerationErrors   uint64  `json:"generation_errors"`
	GenerationTimeouts uint64  `json:"generation_timeouts"`
	IndexBuilds        uint64  `json:"index_builds"`
	IndexLoads         uint64  `json:"index_loads"`
	IndexErrors        uint64  `json:"index_errors"`
	DocumentsIndexed   int64   `json:"documents_indexed"`
	ChunksIndexed      int64   `json:"chunks_indexed"`
	SessionsCreated    uint64  `json:"sessions_created"`
	SessionsArchived   uint64  `json:"sessions_archived"`
	SessionDegraded    bool    `json:"session_degraded"`
	RetrievalSeconds   float64 `json:"retrieval_seconds"`
	GenerationSeconds  float64 `json:"generation_seconds"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// Snapshot 返回当前指标快照。
func (m *DocQAMetrics) Snapshot() Snapshot {
	m.durationMu.Lock()
	retrieval, generation := m.retrievalDuration, m.generationDuration
	m.durationMu.Unlock()

	return Snapshot{
		QueriesTotal:       atomic.LoadUint64(&m.queriesTotal),
		QueriesDocument:    atomic.LoadUint64(&m.queriesDocument),
		QueriesGeneral:     atomic.LoadUint64(&m.queriesGeneral),
		QueriesFailed:      atomic.LoadUint64(&m.queriesFailed),
		RetrievalTotal:     atomic.LoadUint64(&m.retrievalTotal),
		RetrievalErrors:    atomic.LoadUint64(&m.retrievalErrors),
		ChunksRetained:     atomic.LoadUint64(&m.chunksRetained),
		GenerationTotal:    atomic.LoadUint64(&m.generationTotal),
		GenerationErrors:   atomic.LoadUint64(&m.generationErrors),
		GenerationTimeouts: atomic.LoadUint64(&m.generationTimeouts),
		IndexBuilds:        atomic.LoadUint64(&m.indexBuilds),
		IndexLoads:         atomic.LoadUint64(&m.indexLoads),
		IndexErrors:        atomic.LoadUint64(&m.indexErrors),
		DocumentsIndexed:   atomic.LoadInt64(&m.documentsIndexed),
		ChunksIndexed:      atomic.LoadInt64(&m.chunksIndexed),
		SessionsCreated:    atomic.LoadUint64(&m.sessionsCreated),
		SessionsArchived:   atomic.LoadUint64(&m.sessionsArchived),
		SessionDegraded:    atomic.LoadInt32(&m.sessionDegraded) == 1,
		RetrievalSeconds:   retrieval,
		GenerationSeconds:  generation,
		UptimeSeconds:      time.Since(m.startTime).Seconds(),
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *DocQAMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}
	s := m.Snapshot()

	var sb strings.Builder
	counter := func(name, help string, v any) {
		writeMetric(&sb, prefix+"_"+name, "counter", help, v)
	}
	gauge := func(name, help string, v any) {
		writeMetric(&sb, prefix+"_"+name, "gauge", help, v)
	}

	// 查询指标
	counter("queries_total", "Total number of queries.", s.QueriesTotal)
	counter("queries_document_total", "Queries answered from retrieved documents.", s.QueriesDocument)
	counter("queries_general_total", "Queries answered without document context.", s.QueriesGeneral)
	counter("queries_failed_total", "Queries answered with an apology.", s.QueriesFailed)

	// 检索指标
	counter("retrieval_total", "Total number of retrievals.", s.RetrievalTotal)
	counter("retrieval_errors_total", "Number of retrieval errors.", s.RetrievalErrors)
	counter("retrieval_duration_seconds_total", "Total retrieval duration.", s.RetrievalSeconds)
	counter("chunks_retained_total", "Chunks kept after dynamic threshold filtering.", s.ChunksRetained)

	// 生成指标
	counter("generation_total", "Total number of generation backend calls.", s.GenerationTotal)
	counter("generation_errors_total", "Number of failed generation calls.", s.GenerationErrors)
	counter("generation_timeouts_total", "Number of generation calls that timed out.", s.GenerationTimeouts)
	counter("generation_duration_seconds_total", "Total generation duration.", s.GenerationSeconds)

	// 索引指标
	counter("index_builds_total", "Number of index builds.", s.IndexBuilds)
	counter("index_loads_total", "Number of index loads from persisted artifacts.", s.IndexLoads)
	counter("index_errors_total", "Number of failed index builds.", s.IndexErrors)
	gauge("documents_indexed", "Documents in the serving index.", s.DocumentsIndexed)
	gauge("chunks_indexed", "Chunks in the serving index.", s.ChunksIndexed)

	// 会话指标
	counter("sessions_created_total", "Number of sessions created.", s.SessionsCreated)
	counter("sessions_archived_total", "Number of sessions archived.", s.SessionsArchived)
	degraded := 0
	if s.SessionDegraded {
		degraded = 1
	}
	gauge("session_store_degraded", "1 when sessions fall back to process memory.", degraded)
	gauge("uptime_seconds", "Service uptime.", s.UptimeSeconds)

	return sb.String()
}

func writeMetric(sb *strings.Builder, name, typ, help string, v any) {
	fmt.Fprintf(sb, "# HELP %s %s\n", name, help)
	fmt.Fprintf(sb, "# TYPE %s %s\n", name, typ)
	switch x := v.(type) {
	case float64:
		fmt.Fprintf(sb, "%s %.6f\n\n", name, x)
	default:
		fmt.Fprintf(sb, "%s %d\n\n", name, x)
	}
}
