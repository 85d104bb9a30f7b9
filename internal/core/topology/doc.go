// Package topology 实现候选代理图的规划
//
// PlanTopology 依次执行以下阶段，每个阶段之间检查 ctx：
//
//  1. 构建：按区域权重分配节点，Barabási–Albert 优先连接（m=3），
//     再加入 ⌈log2 n⌉ 条连接最远节点的长程边
//  2. 层次聚类：全源最短路（小图精确 BFS，大图地标近似），Ward 合并到 ≈√n 个簇
//  3. 谱分区：归一化拉普拉斯的低端特征向量（移位子空间迭代），
//     k-means 分成 ⌈√(n/2)⌉ 个均衡分区，再做 Kernighan–Lin 细化
//  4. 连通度优化：按 Fiedler 向量差值贪心加入分区间边
//  5. 冗余加固：保证最小点连通度 ≥ 3，为桥与割点加入旁路边
//  6. 指标：直径、平均路径长度、聚类系数、代数连通度、度分布、韧性
//
// 特征值求解在迭代预算内未收敛时，退回基于度的启发式分区，
// 结果标记为 degraded 并在 Warnings 中记录 ConvergenceWarning，调用不会失败。
//
// 结果按 (scale, distribution) 的确定性哈希缓存在 LRU 中，
// 并发的相同请求合并为一次计算，全部调用方取消后计算在阶段边界放弃；规划内部的伪随机数以该哈希为种子。
package topology
