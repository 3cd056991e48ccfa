package errcode

// 推送给前端的通知错误码：
// - 0：无错误
// - 4xxx：可恢复，例如图片缺失但 PDF 仍然生成
// - 5xxx：系统错误，导出失败
const (
	OK              = 0
	ResourceMissing = 4004
	RateLimited     = 4029
	SystemError     = 5000
	RenderTimeout   = 5004
)
