package workload

import (
	"context"
	"math/rand"

	"github.com/utkarsh5026/balancesim/balancer"
)

// Task names of the CPU-bound kernels.
const (
	NamePrimes     = "primes"
	NameMonteCarlo = "monte_carlo"
	NameMatrix     = "matrix"
)

// Primes counts the primes below n by trial division.
func Primes(n int) int {
	count := 0
	for num := 2; num < n; num++ {
		prime := true
		for i := 2; i*i <= num; i++ {
			if num%i == 0 {
				prime = false
				break
			}
		}
		if prime {
			count++
		}
	}
	return count
}

// MonteCarloPi estimates pi by sampling iterations points in the unit square.
func MonteCarloPi(iterations int, seed int64) float64 {
	if iterations <= 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- simulation only
	inside := 0
	for range iterations {
		x, y := rng.Float64(), rng.Float64()
		if x*x+y*y <= 1 {
			inside++
		}
	}
	return 4 * float64(inside) / float64(iterations)
}

// MatrixMultiply multiplies two random size×size matrices and returns the
// sum of the product's entries.
func MatrixMultiply(size int, seed int64) float64 {
	if size <= 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- simulation only
	a := randomMatrix(size, rng)
	b := randomMatrix(size, rng)
	c := make([]float64, size*size)

	// i-k-j order walks b and c row-wise
	for i := range size {
		for k := range size {
			aik := a[i*size+k]
			row := b[k*size : (k+1)*size]
			out := c[i*size : (i+1)*size]
			for j, v := range row {
				out[j] += aik * v
			}
		}
	}

	var sum float64
	for _, v := range c {
		sum += v
	}
	return sum
}

func randomMatrix(size int, rng *rand.Rand) []float64 {
	m := make([]float64, size*size)
	for i := range m {
		m[i] = rng.Float64()
	}
	return m
}

// PrimesTask wraps Primes as a named, weighted task.
func PrimesTask(n int) balancer.Task {
	return balancer.NewTask(NamePrimes, DefaultWeights[NamePrimes], func(ctx context.Context) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Primes(n), nil
	})
}

// MonteCarloTask wraps MonteCarloPi as a named, weighted task.
func MonteCarloTask(iterations int, seed int64) balancer.Task {
	return balancer.NewTask(NameMonteCarlo, DefaultWeights[NameMonteCarlo], func(ctx context.Context) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return MonteCarloPi(iterations, seed), nil
	})
}

// MatrixTask wraps MatrixMultiply as a named, weighted task.
func MatrixTask(size int, seed int64) balancer.Task {
	return balancer.NewTask(NameMatrix, DefaultWeights[NameMatrix], func(ctx context.Context) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return MatrixMultiply(size, seed), nil
	})
}
