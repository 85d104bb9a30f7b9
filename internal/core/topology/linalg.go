package topology

import (
	"context"
	"math"
	"math/rand"
	"sort"
)

// spectrum 归一化拉普拉斯的低端谱
type spectrum struct {
	// values 特征值（升序）
	values []float64
	// vectors vectors[j][u] 为第 j 个特征向量在节点 u 上的分量
	vectors    [][]float64
	converged  bool
	iterations int
	residual   float64
}

// lowestEigen 求归一化拉普拉斯 L = I - D^-1/2 A D^-1/2 最小的 want 个特征对
//
// 在移位算子 S = 2I - L = I + D^-1/2 A D^-1/2 上做子空间迭代（S 半正定，
// 其最大特征值对应 L 的最小特征值），每 5 轮做一次 Rayleigh–Ritz 投影并检查残差。
// 节点数不超过子空间维度时直接对稠密矩阵做 Jacobi 分解。
func lowestEigen(ctx context.Context, rng *rand.Rand, g *graph, want, maxIter int, tol float64) (*spectrum, error) {
	n := g.n
	if want > n {
		want = n
	}
	p := want + 4
	if p >= n {
		return denseEigen(g, want), nil
	}

	invSqrt := make([]float64, n)
	for u := 0; u < n; u++ {
		d := float64(g.degree(u))
		if d == 0 {
			d = 1
		}
		invSqrt[u] = 1 / math.Sqrt(d)
	}
	apply := func(x, y []float64) {
		for u := 0; u < n; u++ {
			s := 0.0
			for _, v := range g.adj[u] {
				s += x[v] * invSqrt[v]
			}
			y[u] = x[u] + s*invSqrt[u]
		}
	}

	q := make([][]float64, p)
	for j := range q {
		q[j] = make([]float64, n)
	}
	// 平凡特征向量 D^1/2·1 直接作为初值
	for u := 0; u < n; u++ {
		q[0][u] = 1 / invSqrt[u]
	}
	for j := 1; j < p; j++ {
		for u := range q[j] {
			q[j][u] = rng.NormFloat64()
		}
	}
	orthonormalize(rng, q)

	z := make([][]float64, p)
	for j := range z {
		z[j] = make([]float64, n)
	}

	res := &spectrum{residual: math.Inf(1)}
	for it := 1; it <= maxIter; it++ {
		if it%32 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j := range q {
			apply(q[j], z[j])
		}

		if it%5 != 0 && it != maxIter {
			q, z = z, q
			orthonormalize(rng, q)
			continue
		}

		// Rayleigh–Ritz：H = Qᵀ S Q，此时 z = S Q
		h := make([][]float64, p)
		for a := 0; a < p; a++ {
			h[a] = make([]float64, p)
			for b := 0; b < p; b++ {
				h[a][b] = dot(q[a], z[b])
			}
		}
		// 数值对称化
		for a := 0; a < p; a++ {
			for b := a + 1; b < p; b++ {
				m := (h[a][b] + h[b][a]) / 2
				h[a][b], h[b][a] = m, m
			}
		}
		theta, vecs := jacobiEigen(h)
		order := make([]int, p)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return theta[order[a]] > theta[order[b]] })

		rq := make([][]float64, p)
		rz := make([][]float64, p)
		for j, col := range order {
			rq[j] = make([]float64, n)
			rz[j] = make([]float64, n)
			for a := 0; a < p; a++ {
				c := vecs[a][col]
				if c == 0 {
					continue
				}
				axpy(c, q[a], rq[j])
				axpy(c, z[a], rz[j])
			}
		}

		worst := 0.0
		for j := 0; j < want; j++ {
			t := theta[order[j]]
			r := 0.0
			for u := 0; u < n; u++ {
				d := rz[j][u] - t*rq[j][u]
				r += d * d
			}
			if r = math.Sqrt(r); r > worst {
				worst = r
			}
		}

		res.iterations = it
		res.residual = worst
		res.values = make([]float64, want)
		res.vectors = make([][]float64, want)
		for j := 0; j < want; j++ {
			res.values[j] = 2 - theta[order[j]]
			res.vectors[j] = rq[j]
		}
		if worst < tol {
			res.converged = true
			return res, nil
		}

		// 继续迭代：以 S·(Ritz 向量) 为下一轮起点
		q = rz
		orthonormalize(rng, q)
	}
	return res, nil
}

// denseEigen 小图直接分解
func denseEigen(g *graph, want int) *spectrum {
	n := g.n
	m := make([][]float64, n)
	for u := 0; u < n; u++ {
		m[u] = make([]float64, n)
		m[u][u] = 1
		if g.degree(u) == 0 {
			continue
		}
		for _, v := range g.adj[u] {
			m[u][v] = 1 / math.Sqrt(float64(g.degree(u)*g.degree(v)))
		}
	}
	// m = D^-1/2 A D^-1/2 + I；L 的特征值 = 2 - m 的特征值
	theta, vecs := jacobiEigen(m)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return theta[order[a]] > theta[order[b]] })

	res := &spectrum{converged: true}
	for j := 0; j < want; j++ {
		col := order[j]
		vec := make([]float64, n)
		for u := 0; u < n; u++ {
			vec[u] = vecs[u][col]
		}
		res.values = append(res.values, 2-theta[col])
		res.vectors = append(res.vectors, vec)
	}
	return res
}

// jacobiEigen 对称矩阵的循环 Jacobi 分解
//
// 返回特征值与特征向量矩阵（第 j 列为第 j 个特征向量），输入不被修改。
func jacobiEigen(in [][]float64) ([]float64, [][]float64) {
	n := len(in)
	a := make([][]float64, n)
	v := make([][]float64, n)
	for i := 0; i < n; i++ {
		a[i] = append([]float64(nil), in[i]...)
		v[i] = make([]float64, n)
		v[i][i] = 1
	}

	for sweep := 0; sweep < 100; sweep++ {
		off := 0.0
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				off += a[p][q] * a[p][q]
			}
		}
		if off < 1e-22 {
			break
		}
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				if math.Abs(a[p][q]) < 1e-300 {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := 1 / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				if theta < 0 {
					t = -t
				}
				c := 1 / math.Sqrt(t*t+1)
				s := t * c
				for k := 0; k < n; k++ {
					akp, akq := a[k][p], a[k][q]
					a[k][p] = c*akp - s*akq
					a[k][q] = s*akp + c*akq
				}
				for k := 0; k < n; k++ {
					apk, aqk := a[p][k], a[q][k]
					a[p][k] = c*apk - s*aqk
					a[q][k] = s*apk + c*aqk
				}
				for k := 0; k < n; k++ {
					vkp, vkq := v[k][p], v[k][q]
					v[k][p] = c*vkp - s*vkq
					v[k][q] = s*vkp + c*vkq
				}
			}
		}
	}

	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = a[i][i]
	}
	return vals, v
}

// orthonormalize 修正 Gram–Schmidt（两轮投影），退化向量用随机向量替换
func orthonormalize(rng *rand.Rand, q [][]float64) {
	for j := range q {
		for attempt := 0; attempt < 3; attempt++ {
			for pass := 0; pass < 2; pass++ {
				for i := 0; i < j; i++ {
					axpy(-dot(q[i], q[j]), q[i], q[j])
				}
			}
			nrm := math.Sqrt(dot(q[j], q[j]))
			if nrm > 1e-10 {
				for u := range q[j] {
					q[j][u] /= nrm
				}
				break
			}
			for u := range q[j] {
				q[j][u] = rng.NormFloat64()
			}
		}
	}
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// axpy y += a·x
func axpy(a float64, x, y []float64) {
	for i := range x {
		y[i] += a * x[i]
	}
}
