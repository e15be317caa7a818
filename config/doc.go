// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
Package config 提供 RagPipe 管线的声明式配置。

统一配置加载，支持 YAML 文件 + 环境变量覆盖。
配置优先级: 默认值 → YAML 文件 → 环境变量。

PipelineConfig 在管线构造时加载一次，此后不可变；
重新加载意味着重建管线。Validate 在加载时执行一次，
所有配置类错误（未知检索器类型、非法分块参数等）在构造期暴露，
绝不推迟到请求期。
*/
package config
