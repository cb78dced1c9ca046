package pb

const ServiceName = "inference.GRPCInferenceService"

// Full method names of the inference service.
const (
	MethodServerLive                   = "/" + ServiceName + "/ServerLive"
	MethodServerReady                  = "/" + ServiceName + "/ServerReady"
	MethodModelReady                   = "/" + ServiceName + "/ModelReady"
	MethodServerMetadata               = "/" + ServiceName + "/ServerMetadata"
	MethodModelMetadata                = "/" + ServiceName + "/ModelMetadata"
	MethodModelInfer                   = "/" + ServiceName + "/ModelInfer"
	MethodModelConfig                  = "/" + ServiceName + "/ModelConfig"
	MethodModelStatistics              = "/" + ServiceName + "/ModelStatistics"
	MethodRepositoryIndex              = "/" + ServiceName + "/RepositoryIndex"
	MethodRepositoryModelLoad          = "/" + ServiceName + "/RepositoryModelLoad"
	MethodRepositoryModelUnload        = "/" + ServiceName + "/RepositoryModelUnload"
	MethodSystemSharedMemoryStatus     = "/" + ServiceName + "/SystemSharedMemoryStatus"
	MethodSystemSharedMemoryRegister   = "/" + ServiceName + "/SystemSharedMemoryRegister"
	MethodSystemSharedMemoryUnregister = "/" + ServiceName + "/SystemSharedMemoryUnregister"
)
