// Copyright (c) RagPipe Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的答案缓存。

Manager 封装 go-redis 客户端，按键读写已合成的答案文本。
缓存是旁路优化：读写失败都只记日志，绝不让请求失败。
提供 ErrCacheMiss 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
