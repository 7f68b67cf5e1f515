// Package biz 提供文档问答服务的业务逻辑层。
//
// 组件（自底向上）：
//   - Segmenter: 按相邻句子的语义相似度切分文档
//   - VectorIndex: 归一化向量的内积索引，负责构建、持久化与检索
//   - Retriever: 将检索槽位映射回分块并附加相关度
//   - Orchestrator: 动态阈值过滤、选择回答模式、组装 prompt 并调用生成后端
//   - KnowledgeBase: 加载语料、分段、建索引，支持整体重建
//   - SessionManager: 会话历史，外部存储不可用时降级为进程内存储
//   - Service: 组合以上组件，供 HTTP 与 MCP 使用
package biz
