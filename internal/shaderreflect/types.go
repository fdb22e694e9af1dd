package shaderreflect

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// typeName renders a type the way WGSL spells it.
func typeName(m *ir.Module, h ir.TypeHandle) string {
	if int(h) >= len(m.Types) {
		return "?"
	}
	t := m.Types[h]
	switch in := t.Inner.(type) {
	case ir.ScalarType:
		return scalarName(in)
	case ir.VectorType:
		return fmt.Sprintf("vec%d<%s>", in.Size, scalarName(in.Scalar))
	case ir.MatrixType:
		return fmt.Sprintf("mat%dx%d<%s>", in.Columns, in.Rows, scalarName(in.Scalar))
	case ir.ArrayType:
		if in.Size.Constant != nil {
			return fmt.Sprintf("array<%s, %d>", typeName(m, in.Base), *in.Size.Constant)
		}
		return fmt.Sprintf("array<%s>", typeName(m, in.Base))
	case ir.SamplerType:
		if in.Comparison {
			return "sampler_comparison"
		}
		return "sampler"
	case ir.ImageType:
		return imageName(in)
	}
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%T", t.Inner)
}

func scalarName(s ir.ScalarType) string {
	switch s.Kind {
	case ir.ScalarFloat:
		if s.Width == 2 {
			return "f16"
		}
		return "f32"
	case ir.ScalarSint:
		return "i32"
	case ir.ScalarUint:
		return "u32"
	case ir.ScalarBool:
		return "bool"
	}
	return "?"
}

func imageName(img ir.ImageType) string {
	var dim string
	switch img.Dim {
	case ir.Dim1D:
		dim = "1d"
	case ir.Dim2D:
		dim = "2d"
	case ir.Dim3D:
		dim = "3d"
	case ir.DimCube:
		dim = "cube"
	}
	if img.Arrayed {
		dim += "_array"
	}
	switch {
	case img.Class == ir.ImageClassDepth:
		return "texture_depth_" + dim
	case img.Multisampled:
		return "texture_multisampled_" + dim
	case img.Class == ir.ImageClassStorage:
		return "texture_storage_" + dim
	}
	return "texture_" + dim
}
