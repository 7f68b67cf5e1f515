// Package store 提供文档问答服务的存储层。
//
// 包含两类存储：
//   - 向量索引：内存中的平坦内积索引，以及索引与分块序列两个持久化产物
//   - 会话存储：Redis 实现与进程内实现，以及会话归档
package store
