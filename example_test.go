package canopy_test

import (
	"context"
	"fmt"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
	"github.com/aretw0/canopy/pkg/workspace"
)

// Example shows a composite build assembled in code: the root aggregate
// forwards assembleAllDebug to both samples, and buildAll is an alias for it.
func Example() {
	b := workspace.NewBuilder("quest")
	root := b.Root().
		Aggregate("assembleAllDebug").
		Alias("buildAll", "assembleAllDebug")
	root.Include("hello_world").Primitive("assembleAllDebug", []string{"./gradlew", "assembleDebug"})
	root.Include("hello_xr", workspace.MapTask("assembleAllDebug", "assembleVulkanDebug")).
		Primitive("assembleVulkanDebug", []string{"./gradlew", "assembleVulkanDebug"})

	tree, err := b.Build()
	if err != nil {
		fmt.Println(err)
		return
	}

	runner := ports.TaskRunnerFunc(func(ctx context.Context, inv ports.Invocation) (ports.Outcome, error) {
		fmt.Println("running", inv.Task)
		return ports.Outcome{}, nil
	})

	eng, err := canopy.New("", canopy.WithTree(tree), canopy.WithRunner(runner))
	if err != nil {
		fmt.Println(err)
		return
	}

	res, err := eng.Run(context.Background(), []string{"buildAll"}, domain.RunOptions{Parallelism: 1})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(res.Status())

	// Output:
	// running hello_world:assembleAllDebug
	// running hello_xr:assembleVulkanDebug
	// succeeded
}
