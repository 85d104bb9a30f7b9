// Package synthesis 在规划好的拓扑之上合成代理网格
//
// SynthesizeMesh 按需求中的区域权重规划拓扑，再为每个拓扑节点采样地理位置
// 与 ASN，生成延迟、带宽与可靠性画像，并模拟网络效应：
//
//   - 共享骨干链路上的拥塞传播与容量约束
//   - 对等链路瓶颈
//   - 按可靠性模型注入的相关故障或级联故障
//
// 之后按延迟与代价的综合评分为每个代理选择有限个对等节点，
// 并用多指标 Dijkstra 计算每个代理的路由表（代价容差内的等价多路径，
// 外加一条避开主路径首跳的备用路径）。
//
// 相同需求（含 Seed）总是生成相同的网格：代理 ID、对等关系与路由表完全一致。
// 参考库存不足时退回有放回采样，并在 Characteristics.Degradations 中记录。
package synthesis
