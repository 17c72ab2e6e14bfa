package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// LookupFields 提供 key/结果字段，供缓存查找与回源日志复用。
func LookupFields(key, result string) logrus.Fields {
	return logrus.Fields{
		"action": "lookup",
		"key":    key,
		"result": result,
	}
}

// RequestFields 提供 HTTP 请求维度的字段，request_id 为空时省略。
func RequestFields(requestID, route, key string, status int) logrus.Fields {
	fields := logrus.Fields{
		"action": "serve",
		"route":  route,
		"key":    key,
		"status": status,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
