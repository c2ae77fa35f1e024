package config

// DefaultConfigYAML 内置默认配置
// 敏感项（supabase.url/key、jwt.secret）不提供默认值，必须由外部配置或环境变量给出
var DefaultConfigYAML = []byte(`
server:
  port: ":3001"
  mode: "release"

supabase:
  url: ""
  key: ""

jwt:
  secret: ""
  expire_hours: 24

cors:
  allowed_origins:
    - "http://localhost:5173"
    - "http://localhost:3001"
`)
