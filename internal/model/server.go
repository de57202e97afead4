package model

import (
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	onnxInference = "onnxruntime"
	onnxProvider  = "Go Backend (ONNX Runtime)"
)

var (
	envOnce sync.Once
	envErr  error
)

// Options configures how the ONNX model is located and fed.
type Options struct {
	ModelPath     string
	FallbackPath  string
	MetadataPath  string
	SharedLibrary string
	InputName     string
	OutputName    string
	ImageSize     int
	ResizeMode    ResizeMode
	ApplySoftmax  bool
	TopK          int
}

// Server runs the fracture classifier through ONNX Runtime. The session holds
// the read-only weights; every Classify call owns its own tensors so requests
// can run concurrently.
type Server struct {
	session      *ort.DynamicAdvancedSession
	Metadata     Metadata
	preprocessor *Preprocessor
	numClasses   int64
	applySoftmax bool
	topK         int
}

func initEnvironment(sharedLibrary string) error {
	envOnce.Do(func() {
		if sharedLibrary != "" {
			ort.SetSharedLibraryPath(sharedLibrary)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// ResolveModelPath returns the first of the configured paths that exists.
func ResolveModelPath(paths ...string) (string, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", errors.Errorf("model file not found in %v", paths)
}

// DefaultFallbackPath is models/model.onnx next to the running executable.
func DefaultFallbackPath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), "models", "model.onnx")
}

func NewServer(opts Options) (*Server, error) {
	modelPath, err := ResolveModelPath(opts.ModelPath, opts.FallbackPath)
	if err != nil {
		return nil, err
	}

	if err := initEnvironment(opts.SharedLibrary); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX environment")
	}

	metadata, outputWidth, err := resolveMetadata(modelPath, opts)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ONNX session")
	}

	slog.Info("loaded onnx model", "path", modelPath, "input", metadata.InputName,
		"output", metadata.OutputName, "classes", len(metadata.Classes), "image_size", metadata.ImageSize)

	return &Server{
		session:      session,
		Metadata:     metadata,
		preprocessor: NewPreprocessor(metadata.ImageSize, opts.ResizeMode),
		numClasses:   outputWidth,
		applySoftmax: opts.ApplySoftmax,
		topK:         opts.TopK,
	}, nil
}

// resolveMetadata merges, in order of precedence: explicit options, the
// metadata file, what the ONNX graph declares, and defaults. It also returns
// the width of the output vector.
func resolveMetadata(modelPath string, opts Options) (Metadata, int64, error) {
	var metadata Metadata
	if opts.MetadataPath != "" {
		m, err := LoadMetadata(opts.MetadataPath)
		if err != nil {
			return metadata, 0, err
		}
		metadata = m
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return metadata, 0, errors.Wrap(err, "failed to read model inputs and outputs")
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return metadata, 0, errors.New("model declares no inputs or outputs")
	}

	if metadata.InputName == "" {
		metadata.InputName = inputs[0].Name
	}
	if metadata.OutputName == "" {
		metadata.OutputName = outputs[0].Name
	}
	if opts.InputName != "" {
		metadata.InputName = opts.InputName
	}
	if opts.OutputName != "" {
		metadata.OutputName = opts.OutputName
	}

	if len(metadata.Classes) == 0 {
		metadata.Classes = embeddedNames(modelPath)
	}
	if len(metadata.Classes) == 0 {
		metadata.Classes = DefaultLabels
	}

	metadata.ImageSize = pickImageSize(opts.ImageSize, metadata.ImageSize, inputs[0].Dimensions)
	if metadata.ImageSize <= 0 {
		return metadata, 0, errors.New("model input size is dynamic and no image size was configured")
	}

	outputWidth := int64(len(metadata.Classes))
	if dims := outputs[0].Dimensions; len(dims) > 0 && dims[len(dims)-1] > 0 {
		outputWidth = dims[len(dims)-1]
	}

	return metadata, outputWidth, nil
}

// embeddedNames reads the class list exporters store under the "names" custom
// metadata key. Absence is not an error.
func embeddedNames(modelPath string) []string {
	md, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		slog.Debug("model has no readable metadata", "error", err)
		return nil
	}
	defer md.Destroy()

	raw, ok, err := md.LookupCustomMetadataMap("names")
	if err != nil || !ok {
		return nil
	}

	names, err := ParseNames(raw)
	if err != nil {
		slog.Warn("ignoring embedded class names", "error", err)
		return nil
	}
	return names
}

// pickImageSize prefers a configured size, then the metadata file, then a
// static square NCHW input shape. Zero means none of them applies.
func pickImageSize(configured, fromMetadata int, dims ort.Shape) int {
	switch {
	case configured > 0:
		return configured
	case fromMetadata > 0:
		return fromMetadata
	default:
		return squareSide(dims)
	}
}

func squareSide(dims ort.Shape) int {
	if len(dims) != 4 || dims[2] <= 0 || dims[2] != dims[3] {
		return 0
	}
	return int(dims[2])
}

func (s *Server) Classify(img image.Image) (*Result, error) {
	size := int64(s.preprocessor.Size())
	inputData := s.preprocessor.Tensor(img)

	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, size, size), inputData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, s.numClasses))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create output tensor")
	}
	defer outputTensor.Destroy()

	if err := s.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	outputData := make([]float32, s.numClasses)
	copy(outputData, outputTensor.GetData())
	if s.applySoftmax {
		softmax(outputData)
	}

	return &Result{Predictions: rank(outputData, s.Metadata.Classes, s.topK)}, nil
}

func (s *Server) Provider() string {
	return onnxProvider
}

func (s *Server) Inference() string {
	return onnxInference
}

func (s *Server) Loaded() bool {
	return true
}

func (s *Server) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}
