package embedding

import (
	"math"
	"math/cmplx"
)

func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterBank returns numMels triangular filters over fftSize/2+1 bins.
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	half := fftSize/2 + 1
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)

	bins := make([]int, numMels+2)
	step := (highMel - lowMel) / float64(numMels+1)
	for i := range bins {
		hz := melToHz(lowMel + float64(i)*step)
		b := int(math.Round(hz * float64(fftSize) / float64(sampleRate)))
		if b >= half {
			b = half - 1
		}
		bins[i] = b
	}
	for i := 1; i < len(bins); i++ {
		if bins[i] <= bins[i-1] {
			bins[i] = bins[i-1] + 1
		}
	}

	bank := make([][]float64, numMels)
	for m := range bank {
		f := make([]float64, half)
		left, center, right := bins[m], bins[m+1], bins[m+2]
		for k := left; k < center && k < half; k++ {
			f[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k <= right && k < half; k++ {
			f[k] = float64(right-k) / float64(right-center)
		}
		bank[m] = f
	}
	return bank
}

// fft is an in-place iterative radix-2 transform. len(x) must be a power of two.
func fft(x []complex128) {
	n := len(x)
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		w := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		for start := 0; start < n; start += size {
			wk := complex(1, 0)
			for k := 0; k < size/2; k++ {
				a := x[start+k]
				b := x[start+k+size/2] * wk
				x[start+k] = a + b
				x[start+k+size/2] = a - b
				wk *= w
			}
		}
	}
}

// dctII returns the first n orthonormal DCT-II coefficients of x.
func dctII(x []float64, n int) []float64 {
	N := float64(len(x))
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		var sum float64
		for i, v := range x {
			sum += v * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*N))
		}
		scale := math.Sqrt(2 / N)
		if k == 0 {
			scale = math.Sqrt(1 / N)
		}
		out[k] = sum * scale
	}
	return out
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
