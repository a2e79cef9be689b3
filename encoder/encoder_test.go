package encoder_test

import (
	"bytes"
	"testing"

	"github.com/vitreousgfx/forge/encoder"
	"github.com/vitreousgfx/forge/handle"
)

func TestRoundTrip(t *testing.T) {
	reg := handle.NewRegistry()
	pl := reg.InternResource("main-pipeline", handle.PipelineGraphics, 0, 1, 0, nil)
	img := reg.InternResource("target", handle.Image, 0, 1, 0, nil)

	e := encoder.New()
	e.BindPipeline(pl)
	e.SetVertexData(0, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	e.SetIndexData(encoder.Index16, []byte{9, 9, 10, 10})
	e.SetArgumentData(2, []byte("uniform-bytes"))
	e.SetViewport(encoder.Viewport{X: 0, Y: 0, Width: 1280, Height: 720, ZNear: 0, ZFar: 1})
	e.SetScissor(encoder.Scissor{X: 0, Y: 0, Width: 1280, Height: 720})
	e.SetLineWidth(2.5)
	e.DrawIndexed(6, 1, 0, 0, 0)
	e.Draw(3, 1, 0, 0)
	e.Dispatch(8, 1, 1)
	e.MapImageMemory(img, encoder.Off3D{}, encoder.Dim3D{Width: 4, Height: 4, Depth: 1}, []byte{1, 2, 3, 4})
	e.TraceRays(640, 480, 1)

	data, handles, n := e.GetEncodedData()
	if n != 12 {
		t.Fatalf("expected 12 commands, got %d", n)
	}

	cmds, err := encoder.Decode(data, handles)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(cmds) != n {
		t.Fatalf("decoded %d commands, want %d", len(cmds), n)
	}

	if cmds[0].Op != encoder.OpBindPipeline || cmds[0].Pipeline != pl {
		t.Fatalf("BindPipeline did not round-trip: %+v", cmds[0])
	}
	if !bytes.Equal(cmds[1].Data, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatalf("SetVertexData payload mismatch: %v", cmds[1].Data)
	}
	if cmds[2].IndexFormat != encoder.Index16 || !bytes.Equal(cmds[2].Data, []byte{9, 9, 10, 10}) {
		t.Fatalf("SetIndexData mismatch: %+v", cmds[2])
	}
	if cmds[3].Table != 2 || string(cmds[3].Data) != "uniform-bytes" {
		t.Fatalf("SetArgumentData mismatch: %+v", cmds[3])
	}
	if cmds[4].Viewport.Width != 1280 || cmds[4].Viewport.Height != 720 {
		t.Fatalf("SetViewport mismatch: %+v", cmds[4].Viewport)
	}
	if cmds[5].Scissor.Width != 1280 {
		t.Fatalf("SetScissor mismatch: %+v", cmds[5].Scissor)
	}
	if cmds[6].LineWidth != 2.5 {
		t.Fatalf("SetLineWidth mismatch: %v", cmds[6].LineWidth)
	}
	if cmds[7].IdxCount != 6 {
		t.Fatalf("DrawIndexed mismatch: %+v", cmds[7])
	}
	if cmds[8].VertCount != 3 {
		t.Fatalf("Draw mismatch: %+v", cmds[8])
	}
	if cmds[9].GroupX != 8 {
		t.Fatalf("Dispatch mismatch: %+v", cmds[9])
	}
	if cmds[10].Op != encoder.OpMapImageMemory || cmds[10].Image != img || !bytes.Equal(cmds[10].Data, []byte{1, 2, 3, 4}) {
		t.Fatalf("MapImageMemory mismatch: %+v", cmds[10])
	}
	last := cmds[len(cmds)-1]
	if last.Op != encoder.OpTraceRays || last.RaysWidth != 640 {
		t.Fatalf("TraceRays mismatch: %+v", last)
	}
}

func TestResetReusesArena(t *testing.T) {
	e := encoder.New()
	e.Draw(1, 1, 0, 0)
	e.Reset()
	data, handles, n := e.GetEncodedData()
	if n != 0 || len(data) != 0 || len(handles) != 0 {
		t.Fatalf("Reset did not clear encoder state: n=%d data=%v handles=%v", n, data, handles)
	}
	e.Dispatch(1, 1, 1)
	_, _, n = e.GetEncodedData()
	if n != 1 {
		t.Fatalf("expected 1 command after reset+record, got %d", n)
	}
}

func TestNilHandleRoundTrips(t *testing.T) {
	e := encoder.New()
	e.BindPipeline(nil)
	data, handles, _ := e.GetEncodedData()
	cmds, err := encoder.Decode(data, handles)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cmds[0].Pipeline != nil {
		t.Fatalf("expected nil pipeline handle to round-trip as nil, got %v", cmds[0].Pipeline)
	}
}
