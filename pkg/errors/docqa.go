package errors

import "net/http"

// Document question-answering service errors.
var (
	// ErrIndexUnbuilt means no usable vector index exists.
	ErrIndexUnbuilt = Register(&Errno{
		Code:      MakeCode(ServiceDocQA, CategoryInternal, 0),
		HTTP:      http.StatusServiceUnavailable,
		MessageEN: "Knowledge base is not ready",
		MessageZH: "知识库尚未就绪",
	})

	// ErrEmptyCorpus means the documents directory produced no documents or chunks.
	ErrEmptyCorpus = Register(&Errno{
		Code:      MakeCode(ServiceDocQA, CategoryInternal, 1),
		HTTP:      http.StatusServiceUnavailable,
		MessageEN: "No documents could be loaded",
		MessageZH: "未能加载任何文档",
	})

	// ErrDimensionMismatch means an embedding does not match the index dimension.
	ErrDimensionMismatch = Register(&Errno{
		Code:      MakeCode(ServiceDocQA, CategoryConflict, 0),
		HTTP:      http.StatusInternalServerError,
		MessageEN: "Embedding dimension mismatch",
		MessageZH: "向量维度不一致",
	})

	// ErrExtraction means a document could not be read.
	ErrExtraction = Register(&Errno{
		Code:      MakeCode(ServiceDocQA, CategoryRequest, 0),
		HTTP:      http.StatusUnprocessableEntity,
		MessageEN: "Document extraction failed",
		MessageZH: "文档解析失败",
	})

	// ErrSessionNotFound means the session does not exist or has expired.
	ErrSessionNotFound = Register(&Errno{
		Code:      MakeCode(ServiceDocQA, CategoryResource, 0),
		HTTP:      http.StatusNotFound,
		MessageEN: "Session not found",
		MessageZH: "会话不存在",
	})

	// ErrSessionStore means the session store failed.
	ErrSessionStore = Register(&Errno{
		Code:      MakeCode(ServiceInfraCache, CategoryCache, 0),
		HTTP:      http.StatusServiceUnavailable,
		MessageEN: "Session store unavailable",
		MessageZH: "会话存储不可用",
	})

	// ErrBackendUnavailable means an inference backend was unreachable or answered non-200.
	ErrBackendUnavailable = Register(&Errno{
		Code:      MakeCode(ServiceThirdPartyLLM, CategoryNetwork, 0),
		HTTP:      http.StatusBadGateway,
		MessageEN: "Inference backend unavailable",
		MessageZH: "推理服务不可用",
	})

	// ErrBackendTimeout means an inference backend call exceeded its deadline.
	ErrBackendTimeout = Register(&Errno{
		Code:      MakeCode(ServiceThirdPartyLLM, CategoryTimeout, 0),
		HTTP:      http.StatusGatewayTimeout,
		MessageEN: "Inference backend timed out",
		MessageZH: "推理服务超时",
	})
)
