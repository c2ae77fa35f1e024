package config

// SafeErrorMessage 生产环境下不向客户端暴露内部错误详情，避免信息泄露
// debug 模式返回具体错误，release 模式只返回兜底文案
func SafeErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if GlobalConfig != nil && GlobalConfig.Server.Mode == "debug" {
		return fallback + ": " + err.Error()
	}
	return fallback
}
