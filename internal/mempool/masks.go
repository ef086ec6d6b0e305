// Package mempool pools the []bool pixel masks used during character
// segmentation. Segmentation runs once per vertical region on every worker,
// so masks of similar size are requested over and over.
package mempool

import "sync"

var maskPools sync.Map // size class (int) -> *sync.Pool

const classStep = 1024

// sizeClass rounds n up to a multiple of 1024, with 1024 as the minimum.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

func poolFor(cls int) *sync.Pool {
	p, _ := maskPools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]bool, cls)
		return &buf
	}})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetMask returns a zeroed mask of length n. Return it with PutMask.
func GetMask(n int) []bool {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, _ := poolFor(cls).Get().(*[]bool)
	if bp == nil || cap(*bp) < cls {
		return make([]bool, n, cls)
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// PutMask hands buf back for reuse. Nil and undersized slices are dropped.
func PutMask(buf []bool) {
	if cap(buf) < classStep {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		// Only exact class capacities are pooled so GetMask never reslices
		// past a buffer's end.
		return
	}
	buf = buf[:cap(buf)]
	poolFor(cls).Put(&buf)
}
