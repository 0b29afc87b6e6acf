package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/shotcoach/internal/detector"
)

// Bone is a skeleton segment between two joints.
type Bone struct {
	From, To detector.JointID
}

// Skeleton lists the segments drawn for a COCO pose.
var Skeleton = []Bone{
	{detector.LeftAnkle, detector.LeftKnee},
	{detector.LeftKnee, detector.LeftHip},
	{detector.RightAnkle, detector.RightKnee},
	{detector.RightKnee, detector.RightHip},
	{detector.LeftHip, detector.RightHip},
	{detector.LeftShoulder, detector.LeftHip},
	{detector.RightShoulder, detector.RightHip},
	{detector.LeftShoulder, detector.RightShoulder},
	{detector.LeftShoulder, detector.LeftElbow},
	{detector.LeftElbow, detector.LeftWrist},
	{detector.RightShoulder, detector.RightElbow},
	{detector.RightElbow, detector.RightWrist},
	{detector.LeftEye, detector.RightEye},
	{detector.Nose, detector.LeftEye},
	{detector.Nose, detector.RightEye},
	{detector.LeftEye, detector.LeftEar},
	{detector.RightEye, detector.RightEar},
}

// Overlay colours (BGR order is handled by gocv).
var (
	ColorBone    = color.RGBA{R: 0, G: 200, B: 255, A: 0}
	ColorJoint   = color.RGBA{R: 255, G: 140, B: 0, A: 0}
	ColorReady   = color.RGBA{R: 0, G: 220, B: 0, A: 0}
	ColorWarning = color.RGBA{R: 230, G: 40, B: 40, A: 0}
)

// Segment is a line to draw, in pixel coordinates.
type Segment struct {
	A, B image.Point
}

// VisibleBones returns the skeleton segments whose joints both exceed minConf.
func VisibleBones(kps []detector.Keypoint, minConf float64) []Segment {
	var pts [detector.NumJoints]*image.Point
	for _, kp := range kps {
		if !kp.Joint.Valid() || kp.Confidence <= minConf {
			continue
		}
		p := image.Pt(int(kp.X+0.5), int(kp.Y+0.5))
		pts[kp.Joint] = &p
	}

	var segs []Segment
	for _, b := range Skeleton {
		a, c := pts[b.From], pts[b.To]
		if a == nil || c == nil {
			continue
		}
		segs = append(segs, Segment{A: *a, B: *c})
	}
	return segs
}

// DrawPose draws the skeleton and joints of kps onto img.
func DrawPose(img *gocv.Mat, kps []detector.Keypoint, minConf float64) {
	for _, s := range VisibleBones(kps, minConf) {
		gocv.Line(img, s.A, s.B, ColorBone, 2)
	}
	for _, kp := range kps {
		if kp.Confidence <= minConf {
			continue
		}
		gocv.Circle(img, image.Pt(int(kp.X+0.5), int(kp.Y+0.5)), 3, ColorJoint, -1)
	}
}

// DrawBanner writes text in the top-left corner, green when ok and red
// otherwise.
func DrawBanner(img *gocv.Mat, text string, ok bool) {
	if text == "" {
		return
	}
	c := ColorWarning
	if ok {
		c = ColorReady
	}
	gocv.PutText(img, text, image.Pt(10, 28), gocv.FontHersheySimplex, 0.7, c, 2)
}

// EncodeJPEG returns img as JPEG bytes.
func EncodeJPEG(img *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
