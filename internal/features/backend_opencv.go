//go:build gocv

package features

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func init() {
	RegisterBackend("opencv", func() Backend { return &OpenCVBackend{} })
}

// OpenCVBackend computes SIFT and ORB through OpenCV via gocv.
//
// It requires OpenCV 4.4 or newer at build and run time and is only compiled
// with the "gocv" build tag.
type OpenCVBackend struct{}

// Name implements Backend.
func (b *OpenCVBackend) Name() string { return "opencv" }

// DetectAndCompute implements Backend.
func (b *OpenCVBackend) DetectAndCompute(gray *image.Gray, method Method) ([]Keypoint, Descriptors, error) {
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, Descriptors{}, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	var (
		kps []gocv.KeyPoint
		des gocv.Mat
	)
	switch method {
	case SIFT:
		sift := gocv.NewSIFT()
		defer sift.Close()
		kps, des = sift.DetectAndCompute(src, mask)
	case ORB:
		orb := gocv.NewORB()
		defer orb.Close()
		kps, des = orb.DetectAndCompute(src, mask)
	default:
		return nil, Descriptors{}, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	defer des.Close()

	keypoints := make([]Keypoint, len(kps))
	for i, kp := range kps {
		keypoints[i] = Keypoint{
			X:        kp.X,
			Y:        kp.Y,
			Size:     kp.Size,
			Angle:    kp.Angle,
			Response: kp.Response,
			Octave:   kp.Octave,
		}
	}

	return keypoints, matToDescriptors(des, method), nil
}

// matToDescriptors copies an OpenCV descriptor matrix row by row.
func matToDescriptors(des gocv.Mat, method Method) Descriptors {
	rows, cols := des.Rows(), des.Cols()
	if des.Empty() {
		rows = 0
	}

	switch method {
	case SIFT:
		out := Descriptors{Kind: FloatDescriptor, Float: make([][]float32, rows)}
		for r := 0; r < rows; r++ {
			row := make([]float32, cols)
			for c := 0; c < cols; c++ {
				row[c] = des.GetFloatAt(r, c)
			}
			out.Float[r] = row
		}
		return out
	default:
		out := Descriptors{Kind: BinaryDescriptor, Binary: make([][]byte, rows)}
		for r := 0; r < rows; r++ {
			row := make([]byte, cols)
			for c := 0; c < cols; c++ {
				row[c] = des.GetUCharAt(r, c)
			}
			out.Binary[r] = row
		}
		return out
	}
}
