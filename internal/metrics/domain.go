package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	autosaveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adbuilder",
			Subsystem: "editor",
			Name:      "autosave_total",
			Help:      "编辑会话保存次数，按结果区分。",
		},
		[]string{"result"},
	)

	liveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "adbuilder",
			Subsystem: "editor",
			Name:      "live_sessions",
			Help:      "内存中的编辑会话数量。",
		},
	)

	feedBlocksImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adbuilder",
			Subsystem: "feed",
			Name:      "blocks_imported_total",
			Help:      "导入的 BlockData 数量，按源格式区分。",
		},
		[]string{"format"},
	)

	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "adbuilder",
			Subsystem: "export",
			Name:      "pdf_total",
			Help:      "PDF 导出次数，按结果区分。",
		},
		[]string{"result"},
	)
)

// ObserveSave 记录一次会话保存。
func ObserveSave(err error) {
	autosaveTotal.WithLabelValues(result(err)).Inc()
}

// SetLiveSessions 上报当前加载的会话数。
func SetLiveSessions(n int) {
	liveSessions.Set(float64(n))
}

// AddImportedBlocks 统计 feed 导入的区块数。
func AddImportedBlocks(format string, n int) {
	feedBlocksImported.WithLabelValues(format).Add(float64(n))
}

// ObserveExport 记录一次 PDF 导出的结果。
func ObserveExport(err error) {
	exportsTotal.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
