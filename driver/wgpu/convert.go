// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wgpu

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/vitreousgfx/forge/driver"
)

func textureFormat(pf driver.PixelFmt) wgpu.TextureFormat {
	switch pf {
	case driver.RGBA8un:
		return wgpu.TextureFormatRGBA8Unorm
	case driver.RGBA8sRGB:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case driver.BGRA8un:
		return wgpu.TextureFormatBGRA8Unorm
	case driver.BGRA8sRGB:
		return wgpu.TextureFormatBGRA8UnormSrgb
	case driver.RG8un:
		return wgpu.TextureFormatRG8Unorm
	case driver.R8un:
		return wgpu.TextureFormatR8Unorm
	case driver.RGBA16f:
		return wgpu.TextureFormatRGBA16Float
	case driver.RG16f:
		return wgpu.TextureFormatRG16Float
	case driver.R16f:
		return wgpu.TextureFormatR16Float
	case driver.RGBA32f:
		return wgpu.TextureFormatRGBA32Float
	case driver.RG32f:
		return wgpu.TextureFormatRG32Float
	case driver.R32f:
		return wgpu.TextureFormatR32Float
	case driver.D16un:
		return wgpu.TextureFormatDepth16Unorm
	case driver.D32f:
		return wgpu.TextureFormatDepth32Float
	case driver.S8ui:
		return wgpu.TextureFormatStencil8
	case driver.D24unS8ui:
		return wgpu.TextureFormatDepth24PlusStencil8
	case driver.D32fS8ui:
		return wgpu.TextureFormatDepth32FloatStencil8
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

// pixelFmtFrom is the inverse of textureFormat, used when the
// swapchain reports the surface's native format back to the core.
func pixelFmtFrom(f wgpu.TextureFormat) driver.PixelFmt {
	switch f {
	case wgpu.TextureFormatRGBA8Unorm:
		return driver.RGBA8un
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return driver.RGBA8sRGB
	case wgpu.TextureFormatBGRA8Unorm:
		return driver.BGRA8un
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return driver.BGRA8sRGB
	default:
		return driver.RGBA8un
	}
}

func textureUsage(u driver.Usage) wgpu.TextureUsage {
	var w wgpu.TextureUsage
	if u&driver.UShaderSample != 0 {
		w |= wgpu.TextureUsageTextureBinding
	}
	if u&driver.UShaderRead != 0 || u&driver.UShaderWrite != 0 {
		w |= wgpu.TextureUsageStorageBinding
	}
	if u&driver.URenderTarget != 0 {
		w |= wgpu.TextureUsageRenderAttachment
	}
	w |= wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst
	return w
}

func bufferUsage(u driver.Usage) wgpu.BufferUsage {
	var w wgpu.BufferUsage
	if u&driver.UShaderConst != 0 {
		w |= wgpu.BufferUsageUniform
	}
	if u&driver.UShaderRead != 0 || u&driver.UShaderWrite != 0 {
		w |= wgpu.BufferUsageStorage
	}
	if u&driver.UVertexData != 0 {
		w |= wgpu.BufferUsageVertex
	}
	if u&driver.UIndexData != 0 {
		w |= wgpu.BufferUsageIndex
	}
	w |= wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	return w
}

func addrMode(a driver.AddrMode) wgpu.AddressMode {
	switch a {
	case driver.AMirror:
		return wgpu.AddressModeMirrorRepeat
	case driver.AClamp:
		return wgpu.AddressModeClampToEdge
	default:
		return wgpu.AddressModeRepeat
	}
}

func filterMode(f driver.Filter) wgpu.FilterMode {
	if f == driver.FLinear {
		return wgpu.FilterModeLinear
	}
	return wgpu.FilterModeNearest
}

func mipmapFilterMode(f driver.Filter) wgpu.MipmapFilterMode {
	if f == driver.FLinear {
		return wgpu.MipmapFilterModeLinear
	}
	return wgpu.MipmapFilterModeNearest
}

func compareFunc(c driver.CmpFunc) wgpu.CompareFunction {
	switch c {
	case driver.CNever:
		return wgpu.CompareFunctionNever
	case driver.CLess:
		return wgpu.CompareFunctionLess
	case driver.CEqual:
		return wgpu.CompareFunctionEqual
	case driver.CLessEqual:
		return wgpu.CompareFunctionLessEqual
	case driver.CGreater:
		return wgpu.CompareFunctionGreater
	case driver.CNotEqual:
		return wgpu.CompareFunctionNotEqual
	case driver.CGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}

func primitiveTopology(t driver.Topology) wgpu.PrimitiveTopology {
	switch t {
	case driver.TPoint:
		return wgpu.PrimitiveTopologyPointList
	case driver.TLine:
		return wgpu.PrimitiveTopologyLineList
	case driver.TLnStrip:
		return wgpu.PrimitiveTopologyLineStrip
	case driver.TTriStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func cullMode(c driver.CullMode) wgpu.CullMode {
	switch c {
	case driver.CFront:
		return wgpu.CullModeFront
	case driver.CBack:
		return wgpu.CullModeBack
	default:
		return wgpu.CullModeNone
	}
}

func vertexFormat(f driver.VertexFmt) wgpu.VertexFormat {
	switch f {
	case driver.Int8x2:
		return wgpu.VertexFormatSint8x2
	case driver.Int8x4:
		return wgpu.VertexFormatSint8x4
	case driver.Int16x2:
		return wgpu.VertexFormatSint16x2
	case driver.Int16x4:
		return wgpu.VertexFormatSint16x4
	case driver.Int32:
		return wgpu.VertexFormatSint32
	case driver.Int32x2:
		return wgpu.VertexFormatSint32x2
	case driver.Int32x3:
		return wgpu.VertexFormatSint32x3
	case driver.Int32x4:
		return wgpu.VertexFormatSint32x4
	case driver.UInt8x2:
		return wgpu.VertexFormatUint8x2
	case driver.UInt8x4:
		return wgpu.VertexFormatUint8x4
	case driver.UInt16x2:
		return wgpu.VertexFormatUint16x2
	case driver.UInt16x4:
		return wgpu.VertexFormatUint16x4
	case driver.UInt32:
		return wgpu.VertexFormatUint32
	case driver.UInt32x2:
		return wgpu.VertexFormatUint32x2
	case driver.UInt32x3:
		return wgpu.VertexFormatUint32x3
	case driver.UInt32x4:
		return wgpu.VertexFormatUint32x4
	case driver.Float32:
		return wgpu.VertexFormatFloat32
	case driver.Float32x2:
		return wgpu.VertexFormatFloat32x2
	case driver.Float32x3:
		return wgpu.VertexFormatFloat32x3
	case driver.Float32x4:
		return wgpu.VertexFormatFloat32x4
	default:
		return wgpu.VertexFormatFloat32
	}
}

func indexFormat(f driver.IndexFmt) wgpu.IndexFormat {
	if f == driver.Index32 {
		return wgpu.IndexFormatUint32
	}
	return wgpu.IndexFormatUint16
}

func blendFactor(f driver.BlendFac) wgpu.BlendFactor {
	switch f {
	case driver.BOne:
		return wgpu.BlendFactorOne
	case driver.BSrcColor:
		return wgpu.BlendFactorSrc
	case driver.BInvSrcColor:
		return wgpu.BlendFactorOneMinusSrc
	case driver.BSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case driver.BInvSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	case driver.BDstColor:
		return wgpu.BlendFactorDst
	case driver.BInvDstColor:
		return wgpu.BlendFactorOneMinusDst
	case driver.BDstAlpha:
		return wgpu.BlendFactorDstAlpha
	case driver.BInvDstAlpha:
		return wgpu.BlendFactorOneMinusDstAlpha
	case driver.BSrcAlphaSaturated:
		return wgpu.BlendFactorSrcAlphaSaturated
	case driver.BBlendColor:
		return wgpu.BlendFactorConstant
	case driver.BInvBlendColor:
		return wgpu.BlendFactorOneMinusConstant
	default:
		return wgpu.BlendFactorZero
	}
}

func blendOp(o driver.BlendOp) wgpu.BlendOperation {
	switch o {
	case driver.BSubtract:
		return wgpu.BlendOperationSubtract
	case driver.BRevSubtract:
		return wgpu.BlendOperationReverseSubtract
	case driver.BMin:
		return wgpu.BlendOperationMin
	case driver.BMax:
		return wgpu.BlendOperationMax
	default:
		return wgpu.BlendOperationAdd
	}
}

func bindGroupLayoutEntry(d driver.Descriptor) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{Binding: uint32(d.Nr), Visibility: shaderStage(d.Stages)}
	switch d.Type {
	case driver.DBuffer:
		e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
	case driver.DConstant:
		e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
	case driver.DImage:
		e.StorageTexture = wgpu.StorageTextureBindingLayout{
			Access:        wgpu.StorageTextureAccessWriteOnly,
			Format:        wgpu.TextureFormatRGBA8Unorm,
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	case driver.DTexture:
		e.Texture = wgpu.TextureBindingLayout{
			SampleType:    wgpu.TextureSampleTypeFloat,
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	case driver.DSampler:
		e.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
	}
	return e
}

func shaderStage(s driver.Stage) wgpu.ShaderStage {
	var w wgpu.ShaderStage
	if s&driver.SVertex != 0 {
		w |= wgpu.ShaderStageVertex
	}
	if s&driver.SFragment != 0 {
		w |= wgpu.ShaderStageFragment
	}
	if s&driver.SCompute != 0 {
		w |= wgpu.ShaderStageCompute
	}
	return w
}
