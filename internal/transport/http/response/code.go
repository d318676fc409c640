package response

// 业务码直接沿用 HTTP 语义
const (
	CodeOK                  = 0
	CodeBadRequest          = 400
	CodeUnauthorized        = 401
	CodeForbidden           = 403
	CodeNotFound            = 404
	CodeConflict            = 409
	CodePayloadTooLarge     = 413
	CodeUnsupportedMedia    = 415
	CodeRangeNotSatisfiable = 416
	CodeUnprocessable       = 422
	CodeTooManyRequests     = 429
	CodeServerError         = 500
	CodeUnavailable         = 503
	CodeTimeout             = 504
)

// CodeMsgMap 用于集中管理 code - msg
var CodeMsgMap = map[int]string{
	CodeOK:                  "OK",
	CodeBadRequest:          "Bad Request",
	CodeUnauthorized:        "Unauthorized",
	CodeForbidden:           "Forbidden",
	CodeNotFound:            "Not Found",
	CodeConflict:            "Conflict",
	CodePayloadTooLarge:     "Payload Too Large",
	CodeUnsupportedMedia:    "Unsupported Media Type",
	CodeRangeNotSatisfiable: "Range Not Satisfiable",
	CodeUnprocessable:       "Unprocessable Entity",
	CodeTooManyRequests:     "Too Many Requests",
	CodeServerError:         "Internal Server Error",
	CodeUnavailable:         "Service Unavailable",
	CodeTimeout:             "Gateway Timeout",
}
