// Package camerarender turns raw YUV camera frames into displayable RGB
// images through a pluggable graphics backend.
//
// A camera driver delivers one luma plane and two chroma planes, each with
// its own row stride and pixel stride. The GPU images those planes are
// uploaded into only accept tightly packed rows, so every plane goes
// through the repacker first: padded rows are copied into a reusable
// scratch buffer, packed planes are uploaded as they are. The compositor
// then binds the three channel images to the YUV conversion shader and
// draws into an RGBA render target the size of the luma plane.
//
// # Quick Start
//
//	backend := softgpu.New()
//
//	v, err := camerarender.NewVisualizer(camerarender.VisualizerConfig{
//	    Backend:   backend,
//	    Surface:   surface,   // shows OutputFrame images
//	    Indicator: indicator, // recording light
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := v.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer v.Close()
//
//	v.CaptureStarted()
//	for frame := range frames {
//	    // frame is a ThreePlaneFrame or a CombinedFrame
//	    if err := v.OnFrame(frame); err != nil {
//	        log.Printf("frame rejected: %v", err)
//	    }
//	}
//	v.CaptureEnded()
//
// # Frame Sources
//
//   - ThreePlaneFrame: three independently strided planes
//   - CombinedFrame: one buffer, luma then chroma, in I420, NV12 or NV21
//
// Both are reduced to a (Y, U, V) plane triple. Semi-planar chroma is
// addressed with an element size of 2, and the shader is told to read one
// byte out of every element through the texture scale uniform.
//
// # Resource Model
//
// Channel images, scratch buffers and the output target are allocated on
// the first frame and reused while dimensions stay the same. A change in
// any plane's geometry reallocates only what no longer fits. Close
// releases everything; the next frame starts over.
//
// # Orientation
//
// Camera rows arrive top-down while render targets are addressed
// bottom-up. The compositor always submits a texture scale with Y = -1,
// which flips the image vertically during sampling.
//
// # Thread Safety
//
// FrameCompositor, RawPreview and RepackPlane are single-threaded: they
// run on the frame-processing thread. Visualizer serialises lifecycle
// notifications and frames with a mutex and may be called from any
// goroutine.
package camerarender
