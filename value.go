package mapbatch

import "golang.org/x/exp/constraints"

// Kind is the closed set of element type tags a Value's Data can hold.
// Spec §4's Design Notes call for "dispatch on a closed set of element-type
// tags to typed copy routines" rather than a generic byte-copy — this is
// that set.
type Kind int

const (
	KindInvalid Kind = iota
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBool
)

// Shape is a partial or concrete shape descriptor. A dimension of -1 in a
// Config.OutputShapes entry means "unknown until the first result arrives";
// concrete Values on BatchSlot.output always carry fully resolved shapes.
type Shape []int64

func (s Shape) numElements() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Value is one typed multi-dimensional array: a component of an upstream
// record, a transform result, or a batch. Data holds a flat, row-major
// slice of the concrete Go type Kind names.
type Value struct {
	Kind  Kind
	Shape Shape
	Data  any
}

// Record is one upstream record: an ordered sequence of typed arrays.
type Record []Value

// Result is a transform's output for one record: K typed arrays.
type Result []Value

// Batch is K batch-shaped components, leading dimension batch_size (or the
// short count for a final partial batch).
type Batch []Value

func (v Value) slabLen() int64 {
	if len(v.Shape) == 0 || v.Shape[0] == 0 {
		return 0
	}
	return v.Shape.numElements() / v.Shape[0]
}

// numElements returns the element count of a single-record component
// (i.e. a Result entry, whose Shape has no leading batch dimension).
func (v Value) numElements() int64 {
	return v.Shape.numElements()
}

// allocateBatchComponent builds an empty batch-shaped Value for a component
// whose per-record shape is componentShape, per spec §4.1's lazy
// allocation: "K arrays of shape [batch_size, ...result_component_shape]".
func allocateBatchComponent(kind Kind, batchSize int64, componentShape Shape) Value {
	shape := make(Shape, 0, len(componentShape)+1)
	shape = append(shape, batchSize)
	shape = append(shape, componentShape...)
	n := shape.numElements()
	return Value{Kind: kind, Shape: shape, Data: newSlice(kind, n)}
}

func newSlice(kind Kind, n int64) any {
	switch kind {
	case KindInt64:
		return make([]int64, n)
	case KindFloat32:
		return make([]float32, n)
	case KindFloat64:
		return make([]float64, n)
	case KindString:
		return make([]string, n)
	case KindBool:
		return make([]bool, n)
	default:
		return nil
	}
}

// copyAtOffset is the Go rendering of the original op's
// "DoParallelConcat(device, tensor, offset, batch)": it assigns src as the
// offset-th slab along dst's leading dimension. dst must already be
// allocated; src's element count must equal dst's per-slab element count.
func copyAtOffset(dst *Value, offset int64, src Value) Status {
	slab := dst.slabLen()
	if src.numElements() != slab {
		return InvalidArgumentf(
			"cannot add tensor to the batch: number of elements does not match: got %d, want %d",
			src.numElements(), slab)
	}
	switch dst.Kind {
	case KindInt64:
		return copyNumericSlab[int64](dst, offset, src, slab)
	case KindFloat32:
		return copyNumericSlab[float32](dst, offset, src, slab)
	case KindFloat64:
		return copyNumericSlab[float64](dst, offset, src, slab)
	case KindString:
		return copyGenericSlab[string](dst, offset, src, slab)
	case KindBool:
		return copyGenericSlab[bool](dst, offset, src, slab)
	default:
		return InvalidArgumentf("unsupported data type: %v", dst.Kind)
	}
}

// copyNumericSlab handles the numeric Kinds via a single generic
// instantiation bound by constraints.Integer|constraints.Float, the same
// constraint package the teacher's pipeline/wordcount examples import.
func copyNumericSlab[T constraints.Integer | constraints.Float](dst *Value, offset int64, src Value, slab int64) Status {
	return copyGenericSlab[T](dst, offset, src, slab)
}

func copyGenericSlab[T any](dst *Value, offset int64, src Value, slab int64) Status {
	dstSlice, ok := dst.Data.([]T)
	if !ok {
		return InvalidArgumentf("batch component has unexpected Go type for kind %v", dst.Kind)
	}
	srcSlice, ok := src.Data.([]T)
	if !ok {
		return InvalidArgumentf("result component has unexpected Go type for kind %v", src.Kind)
	}
	copy(dstSlice[offset*slab:(offset+1)*slab], srcSlice)
	return Status{}
}

// copyPartialBatch is the Go rendering of CopyPartialBatch: it copies the
// first numElements leading-dimension slabs of src into a freshly shaped
// dst, for the short-final-batch case and for writing a short slot into a
// checkpoint (restore-time re-padding is padToBatchSize).
func copyPartialBatch(src Value, numElements int64) (Value, Status) {
	slab := src.slabLen()
	shape := src.Shape.clone()
	shape[0] = numElements
	dst := Value{Kind: src.Kind, Shape: shape, Data: newSlice(src.Kind, shape.numElements())}
	n := numElements * slab
	switch src.Kind {
	case KindInt64:
		return dst, copySlabPrefix[int64](&dst, src, n)
	case KindFloat32:
		return dst, copySlabPrefix[float32](&dst, src, n)
	case KindFloat64:
		return dst, copySlabPrefix[float64](&dst, src, n)
	case KindString:
		return dst, copySlabPrefix[string](&dst, src, n)
	case KindBool:
		return dst, copySlabPrefix[bool](&dst, src, n)
	default:
		return Value{}, InvalidArgumentf("unsupported data type: %v", src.Kind)
	}
}

func copySlabPrefix[T any](dst *Value, src Value, n int64) Status {
	dstSlice := dst.Data.([]T)
	srcSlice, ok := src.Data.([]T)
	if !ok {
		return InvalidArgumentf("unexpected Go type for kind %v", src.Kind)
	}
	copy(dstSlice[:n], srcSlice[:n])
	return Status{}
}

// padToBatchSize is used on restore: a checkpointed short-batch tensor has
// leading dimension < batch_size, and is embedded at the leading slice of a
// freshly allocated [batch_size, ...] tensor, per spec §4.5. The rest of the
// full tensor is logically unused, since num_elements already records the
// truth.
func padToBatchSize(v Value, batchSize int64) (Value, Status) {
	if v.Shape[0] >= batchSize {
		return v, Status{}
	}
	n := v.Shape[0]
	full := allocateBatchComponent(v.Kind, batchSize, v.Shape[1:])
	slab := full.slabLen()
	switch v.Kind {
	case KindInt64:
		return full, copySlabPrefixInto[int64](&full, v, n*slab)
	case KindFloat32:
		return full, copySlabPrefixInto[float32](&full, v, n*slab)
	case KindFloat64:
		return full, copySlabPrefixInto[float64](&full, v, n*slab)
	case KindString:
		return full, copySlabPrefixInto[string](&full, v, n*slab)
	case KindBool:
		return full, copySlabPrefixInto[bool](&full, v, n*slab)
	default:
		return Value{}, InvalidArgumentf("unsupported data type: %v", v.Kind)
	}
}

func copySlabPrefixInto[T any](dst *Value, src Value, n int64) Status {
	dstSlice, ok := dst.Data.([]T)
	if !ok {
		return InvalidArgumentf("unexpected Go type for kind %v", dst.Kind)
	}
	srcSlice, ok := src.Data.([]T)
	if !ok {
		return InvalidArgumentf("unexpected Go type for kind %v", src.Kind)
	}
	copy(dstSlice[:n], srcSlice[:n])
	return Status{}
}
