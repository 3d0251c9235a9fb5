// Command dispatchcost measures what it costs to call the same method directly, through
// reflection, and through dynamic handles.
package main

func main() {
	Execute()
}
